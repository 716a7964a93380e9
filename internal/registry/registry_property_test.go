package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"studysync/pkg/types"
)

// The registry's core invariant: an actor appears in a session's
// participant list exactly when the directory maps that actor to the
// session. Exercised with random interleavings of joins and leaves.
func TestRegistryDirectoryConsistencyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("participants mirror the directory", prop.ForAll(
		func(ops []int) string {
			r := New(nil)
			base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

			keys := make([]Key, 3)
			for i := range keys {
				keys[i] = Key{
					Kind:      types.KindLearning,
					ActorID:   fmt.Sprintf("origin%d", i),
					CreatedAt: base.Add(time.Duration(i) * time.Second),
				}
			}

			for _, op := range ops {
				actor := types.Actor{
					ID:   fmt.Sprintf("actor%d", op%5),
					Role: types.RoleStudent,
				}
				if op%2 == 0 {
					session := r.CreateOrGet(keys[(op/5)%3])
					if _, err := r.AddParticipant(session.ID, actor, base); err != nil {
						return fmt.Sprintf("unexpected join error: %v", err)
					}
				} else {
					sid, ok := r.Lookup(actor.ID)
					if !ok {
						continue
					}
					if _, err := r.RemoveParticipant(sid, actor.ID); err != nil {
						return fmt.Sprintf("unexpected leave error: %v", err)
					}
				}
			}

			return checkConsistency(r)
		},
		gen.SliceOf(gen.IntRange(0, 29)),
	))

	properties.TestingRun(t)
}

// checkConsistency returns an empty string when the registry state is
// coherent, or a description of the first violation found.
func checkConsistency(r *Registry) string {
	sessions := r.Sessions()
	stats := r.Stats()

	totalParticipants := 0
	seen := make(map[string]bool)
	for _, s := range sessions {
		if len(s.Participants) == 0 {
			return fmt.Sprintf("empty session %s still live", s.ID)
		}
		for _, p := range s.Participants {
			totalParticipants++
			if seen[p.ActorID] {
				return fmt.Sprintf("actor %s participates in two sessions", p.ActorID)
			}
			seen[p.ActorID] = true

			sid, ok := r.Lookup(p.ActorID)
			if !ok {
				return fmt.Sprintf("participant %s has no directory entry", p.ActorID)
			}
			if sid != s.ID {
				return fmt.Sprintf("participant %s mapped to %s, expected %s", p.ActorID, sid, s.ID)
			}
		}
	}

	if stats["connected_actors"] != totalParticipants {
		return fmt.Sprintf("directory holds %d actors, sessions hold %d participants",
			stats["connected_actors"], totalParticipants)
	}
	return ""
}
