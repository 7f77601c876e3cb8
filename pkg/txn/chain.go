package txn

import (
	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/record"
)

// facingSides reports, independently, whether each of rec's two
// endpoints equals node. A self-loop where both endpoints are node
// faces it on both sides at once, and a chain patch must update both
// of rec's prev/next fields for that side, not just one — picking a
// single side (first-match) leaves the other stale.
func facingSides(rec *record.Relationship, node record.NodeID) (first, second bool) {
	return rec.FirstNode == node, rec.SecondNode == node
}

// connectRelationship splices rel onto the head of both firstNode's and
// secondNode's relationship chains. When both endpoints are the same
// node (a self-loop) or already share a head, the same staged
// *record.Relationship is loaded and mutated on both sides in turn
// rather than aliasing two independent copies, so neither side's patch
// is lost.
func (tx *Transaction) connectRelationship(rel *record.Relationship, firstNode, secondNode *record.Node) error {
	aHead := firstNode.NextRel
	bHead := secondNode.NextRel

	if aHead != record.NoRelID {
		if err := tx.acquireLock(lock.RelationshipKey(aHead), lock.WriteLock); err != nil {
			return err
		}
	}
	if bHead != record.NoRelID && bHead != aHead {
		if err := tx.acquireLock(lock.RelationshipKey(bHead), lock.WriteLock); err != nil {
			return err
		}
	}

	rel.FirstNextRel = aHead
	rel.SecondNextRel = bHead

	if aHead != record.NoRelID {
		headRec, err := tx.loadRelationship(aHead)
		if err != nil {
			return err
		}
		first, second := facingSides(headRec, firstNode.ID)
		if !first && !second {
			return ErrIntegrityViolation{Reason: "relationship chain head does not reference the node whose head it is"}
		}
		if first {
			headRec.FirstPrevRel = rel.ID
		}
		if second {
			headRec.SecondPrevRel = rel.ID
		}
		tx.stageRelationship(headRec)
	}
	if bHead != record.NoRelID {
		headRec, err := tx.loadRelationship(bHead)
		if err != nil {
			return err
		}
		first, second := facingSides(headRec, secondNode.ID)
		if !first && !second {
			return ErrIntegrityViolation{Reason: "relationship chain head does not reference the node whose head it is"}
		}
		if first {
			headRec.FirstPrevRel = rel.ID
		}
		if second {
			headRec.SecondPrevRel = rel.ID
		}
		tx.stageRelationship(headRec)
	}

	firstNode.NextRel = rel.ID
	secondNode.NextRel = rel.ID
	tx.stageNode(firstNode)
	tx.stageNode(secondNode)
	tx.stageRelationship(rel)
	return nil
}

// spliceOut removes rel from one side of its chain (the side facing
// endpoint), patching the neighbor before it (prevID) and the neighbor
// after it (nextID) to point past rel.
func (tx *Transaction) spliceOut(prevID, nextID record.RelationshipID, endpoint record.NodeID) error {
	if prevID != record.NoRelID {
		prevRec, err := tx.loadRelationship(prevID)
		if err != nil {
			return err
		}
		if err := tx.acquireLock(lock.RelationshipKey(prevID), lock.WriteLock); err != nil {
			return err
		}
		first, second := facingSides(prevRec, endpoint)
		if !first && !second {
			return ErrIntegrityViolation{Reason: "relationship chain predecessor does not reference the expected endpoint"}
		}
		if first {
			prevRec.FirstNextRel = nextID
		}
		if second {
			prevRec.SecondNextRel = nextID
		}
		tx.stageRelationship(prevRec)
	}
	if nextID != record.NoRelID {
		nextRec, err := tx.loadRelationship(nextID)
		if err != nil {
			return err
		}
		if err := tx.acquireLock(lock.RelationshipKey(nextID), lock.WriteLock); err != nil {
			return err
		}
		first, second := facingSides(nextRec, endpoint)
		if !first && !second {
			return ErrIntegrityViolation{Reason: "relationship chain successor does not reference the expected endpoint"}
		}
		if first {
			nextRec.FirstPrevRel = prevID
		}
		if second {
			nextRec.SecondPrevRel = prevID
		}
		tx.stageRelationship(nextRec)
	}
	return nil
}

// disconnectRelationship unlinks rel from both endpoints' chains and
// updates either endpoint's NextRel head pointer if rel was the head.
func (tx *Transaction) disconnectRelationship(rel *record.Relationship) error {
	if err := tx.spliceOut(rel.FirstPrevRel, rel.FirstNextRel, rel.FirstNode); err != nil {
		return err
	}
	if err := tx.spliceOut(rel.SecondPrevRel, rel.SecondNextRel, rel.SecondNode); err != nil {
		return err
	}

	firstNode, err := tx.loadNode(rel.FirstNode)
	if err != nil {
		return err
	}
	if firstNode.NextRel == rel.ID {
		firstNode.NextRel = rel.FirstNextRel
		tx.stageNode(firstNode)
	}
	secondNode, err := tx.loadNode(rel.SecondNode)
	if err != nil {
		return err
	}
	if secondNode.NextRel == rel.ID {
		secondNode.NextRel = rel.SecondNextRel
		tx.stageNode(secondNode)
	}

	rel.InUse = false
	tx.stageRelationship(rel)
	return nil
}
