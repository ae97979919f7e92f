package node

import (
	"time"

	"github.com/sirupsen/logrus"
)

func (n *Node) snapshotLoop() {
	ticker := time.NewTicker(n.conf.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.saveSnapshot()
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) saveSnapshot() {
	snap := n.graph.Snapshot()

	if err := n.Store.Save(snap); err != nil {
		n.logger.WithError(err).Error("Saving snapshot")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"transactions": snap.Len(),
		"path":         n.Store.StorePath(),
	}).Debug("Saved snapshot")
}
