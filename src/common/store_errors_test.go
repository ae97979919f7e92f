package common

import (
	"fmt"
	"testing"
)

func TestIsStore(t *testing.T) {
	err := NewStoreErr("Transaction", KeyNotFound, "tx-1")

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("err should be a KeyNotFound StoreErr")
	}

	if IsStore(err, KeyAlreadyExists) {
		t.Fatalf("err should not be a KeyAlreadyExists StoreErr")
	}

	if IsStore(fmt.Errorf("other"), KeyNotFound) {
		t.Fatalf("plain errors are not StoreErrs")
	}

	if err.Key() != "tx-1" {
		t.Fatalf("Key should be tx-1, not %s", err.Key())
	}

	expected := "Transaction, tx-1, Not Found"
	if err.Error() != expected {
		t.Fatalf("Error() should be %q, not %q", expected, err.Error())
	}
}

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0x04, 0xab, 0xcd}

	s := EncodeToString(data)
	if s != "0X04ABCD" {
		t.Fatalf("encoded string should be 0X04ABCD, not %s", s)
	}

	back, err := DecodeFromString("0x04abcd")
	if err != nil {
		t.Fatal(err)
	}

	if string(back) != string(data) {
		t.Fatalf("decoded bytes should be %v, not %v", data, back)
	}

	if _, err := DecodeFromString("04abcd"); err == nil {
		t.Fatalf("decoding without prefix should fail")
	}
}
