package lottery

import (
	"context"

	"github.com/tripdraw/tripdraw/pkg/separation"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// SeparationGraph builds the separation graph over every participant in
// the store. The weekly runner builds its own graph scoped to the
// week's working set; this one backs inspection surfaces like the CLI
// and the HTTP API, where loops involving inactive participants still
// matter.
func SeparationGraph(ctx context.Context, st store.Store) (*separation.Graph, error) {
	participants, err := st.Participants(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := st.Separations(ctx)
	if err != nil {
		return nil, err
	}

	members := make([]separation.Participant, len(participants))
	byID := make(map[int64]separation.Participant, len(participants))
	for i, p := range participants {
		sp := separation.Participant{ID: p.ID, Name: p.Name}
		members[i] = sp
		byID[p.ID] = sp
	}

	relations := make([]separation.Relation, 0, len(requests))
	for _, s := range requests {
		initiator, ok := byID[s.InitiatorID]
		if !ok {
			continue
		}
		recipient, ok := byID[s.RecipientID]
		if !ok {
			continue
		}
		relations = append(relations, separation.Relation{Initiator: initiator, Recipient: recipient})
	}
	return separation.NewGraph(members, relations), nil
}
