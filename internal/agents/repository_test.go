package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paidchat/internal/chatapi"
	"paidchat/internal/chatapi/stub"
	"paidchat/internal/domain"
)

func TestRepository_RefreshSelectsFirst(t *testing.T) {
	svc := stub.NewService("")
	svc.SetAgents([]chatapi.Agent{
		{ID: "a", Name: "Alpha", RestrictedPhrases: []string{"open sesame"}, MessageCost: 2},
		{ID: "b", Name: "Beta"},
	})
	r := NewRepository(svc, nil)

	require.NoError(t, r.Refresh(context.Background()))

	sel, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", sel.ID)
	assert.Equal(t, 2.0, sel.MessageCost)
	assert.Len(t, r.List(), 2)
}

func TestRepository_SelectAndGet(t *testing.T) {
	svc := stub.NewService("")
	svc.SetAgents([]chatapi.Agent{{ID: "a"}, {ID: "b", Name: "Beta"}})
	r := NewRepository(svc, nil)
	require.NoError(t, r.Refresh(context.Background()))

	require.NoError(t, r.Select("b"))
	sel, _ := r.Selected()
	assert.Equal(t, "Beta", sel.Name)

	err := r.Select("zzz")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Get("zzz")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Selection survives a refresh while the agent still exists.
	require.NoError(t, r.Refresh(context.Background()))
	sel, _ = r.Selected()
	assert.Equal(t, "b", sel.ID)
}

func TestRepository_FallsBackToDefaultAgent(t *testing.T) {
	svc := stub.NewService("")
	svc.AgentsErr = errors.New("service down")
	r := NewRepository(svc, nil)

	err := r.Refresh(context.Background())
	require.Error(t, err)

	sel, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, domain.DefaultAgentID, sel.ID)
	assert.Equal(t, "Pixie", sel.Name)
}

func TestRepository_FailureKeepsKnownAgents(t *testing.T) {
	svc := stub.NewService("")
	svc.SetAgents([]chatapi.Agent{{ID: "a"}})
	r := NewRepository(svc, nil)
	require.NoError(t, r.Refresh(context.Background()))

	svc.AgentsErr = errors.New("service down")
	require.Error(t, r.Refresh(context.Background()))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

func TestRepository_UpdateCost(t *testing.T) {
	svc := stub.NewService("")
	svc.SetAgents([]chatapi.Agent{{ID: "a", MessageCost: 1}})
	r := NewRepository(svc, nil)
	require.NoError(t, r.Refresh(context.Background()))

	r.UpdateCost("a", 1.2)
	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1.2, a.MessageCost)
}
