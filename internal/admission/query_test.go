package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackreg/backend/internal/models"
)

func TestListPageTextSearchMatchesPID(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	seedUser(t, db, "first@example.com", func(u *models.User) {
		u.PID = "brave-lion-tree"
	})
	seedUser(t, db, "second@example.com", func(u *models.User) {
		u.PID = "calm-otter-reed"
	})

	page, err := engine.ListPage(PageQuery{Text: "otter"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "second@example.com", page.Users[0].Email)
}

func TestListPageIsZeroBased(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	seedUser(t, db, "only@example.com", nil)

	first, err := engine.ListPage(PageQuery{Page: 0, Size: 25})
	require.NoError(t, err)
	require.Len(t, first.Users, 1)
	assert.EqualValues(t, 1, first.TotalPages)

	next, err := engine.ListPage(PageQuery{Page: 1, Size: 25})
	require.NoError(t, err)
	assert.Empty(t, next.Users)
}

func TestListPageFilters(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	seedUser(t, db, "admitted@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
	})
	seedUser(t, db, "pending@example.com", nil)

	page, err := engine.ListPage(PageQuery{Filters: Filters{Admitted: true}})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "admitted@example.com", page.Users[0].Email)
}
