package peers

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"

	"github.com/mosaicnetworks/dagledger/src/common"
)

//PeerSet is a set of Peers forming a validator set
type PeerSet struct {
	Peers    []*Peer          `json:"peers"`
	ByPubKey map[string]*Peer `json:"-"`

	//cached values
	hash []byte
	hex  string
}

/* Constructors */

//NewPeerSet creates a new PeerSet from a list of Peers. Duplicate public keys
//are dropped, keeping the first occurrence.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByPubKey: make(map[string]*Peer),
	}

	unique := make([]*Peer, 0, len(peers))
	for _, peer := range peers {
		if _, ok := peerSet.ByPubKey[peer.PubKeyHex]; ok {
			continue
		}
		peerSet.ByPubKey[peer.PubKeyHex] = peer
		unique = append(unique, peer)
	}

	peerSet.Peers = unique

	return peerSet
}

//NewPeerSetFromPeerSliceBytes creates a new PeerSet from a peerSlice in Bytes format
func NewPeerSetFromPeerSliceBytes(peerSliceBytes []byte) (*PeerSet, error) {
	//Decode Peer slice
	peers := []*Peer{}

	b := bytes.NewBuffer(peerSliceBytes)
	dec := json.NewDecoder(b) //will read from b

	err := dec.Decode(&peers)
	if err != nil {
		return nil, err
	}
	//create new PeerSet
	return NewPeerSet(peers), nil
}

//WithRemovedPeer returns a new PeerSet with a list of peers excluding the
//provided one
func (peerSet *PeerSet) WithRemovedPeer(pubKeyHex string) *PeerSet {
	_, peers := ExcludePeer(peerSet.Peers, pubKeyHex)
	return NewPeerSet(peers)
}

/* ToSlice Methods */

//PubKeys returns the PeerSet's slice of public keys
func (peerSet *PeerSet) PubKeys() []string {
	res := []string{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.PubKeyHex)
	}

	return res
}

/* Utilities */

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByPubKey)
}

//Contains reports whether a peer with the given public key belongs to the set
func (peerSet *PeerSet) Contains(pubKeyHex string) bool {
	_, ok := peerSet.ByPubKey[pubKeyHex]
	return ok
}

// Hash identifies a PeerSet by the SHA256 digest of its members' public keys,
// in order. Validators and leaders log it so operators can check that every
// node loaded the same peers.json.
func (peerSet *PeerSet) Hash() ([]byte, error) {
	if len(peerSet.hash) == 0 {
		h := sha256.New()
		for _, p := range peerSet.Peers {
			pk, err := p.PubKeyBytes()
			if err != nil {
				return nil, err
			}
			h.Write(pk)
		}
		peerSet.hash = h.Sum(nil)
	}
	return peerSet.hash, nil
}

//Hex is the hexadecimal representation of Hash
func (peerSet *PeerSet) Hex() string {
	if len(peerSet.hex) == 0 {
		hash, _ := peerSet.Hash()
		peerSet.hex = common.EncodeToString(hash)
	}
	return peerSet.hex
}

//Marshal marshals the peerset
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

//Majority returns the number of votes that forms a strict majority (more than
//half) of the PeerSet
func (peerSet *PeerSet) Majority() int {
	return MajorityOf(peerSet.Len())
}

//MajorityOf returns the smallest count strictly greater than n/2
func MajorityOf(n int) int {
	return n/2 + 1
}
