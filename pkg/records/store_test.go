package records

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/recordbook/pkg/photo"
)

func img(t *testing.T, n int) photo.Durable {
	t.Helper()
	d, err := photo.ParseDurable("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("img-%d", n))))
	require.NoError(t, err)
	return d
}

func imgs(t *testing.T, n int) []photo.Durable {
	t.Helper()
	out := make([]photo.Durable, n)
	for i := range out {
		out[i] = img(t, i)
	}
	return out
}

// recordingSaver keeps every flushed collection.
type recordingSaver struct {
	saves [][]Record
	err   error
}

func (r *recordingSaver) Save(_ context.Context, c []Record) error {
	r.saves = append(r.saves, c)
	return r.err
}

func TestStore_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		images int
		field  string
	}{
		{name: "empty title", title: "", images: 1, field: "title"},
		{name: "blank title", title: "   \t", images: 1, field: "title"},
		{name: "no images", title: "Trip", images: 0, field: "images"},
		{name: "too many images", title: "Trip", images: MaxImages + 1, field: "images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &recordingSaver{}
			s := NewStore(saver)

			idx, err := s.Create(context.Background(), tt.title, imgs(t, tt.images))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, -1, idx)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			assert.Equal(t, 0, s.Len())
			assert.Empty(t, saver.saves, "failed validation must not save")
		})
	}
}

func TestStore_CreateSavesEveryMutation(t *testing.T) {
	saver := &recordingSaver{}
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(saver, WithClock(func() time.Time { return created }))
	ctx := context.Background()

	idx, err := s.Create(ctx, "  Beach day  ", imgs(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = s.Create(ctx, "Hike", imgs(t, MaxImages))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	require.Len(t, saver.saves, 2)
	assert.Len(t, saver.saves[0], 1)
	assert.Len(t, saver.saves[1], 2)

	rec, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Beach day", rec.Title)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NotEqual(t, uuid.Nil, rec.ID)

	assert.Equal(t, []Summary{
		{Index: 0, Title: "Beach day", ImageCount: 3},
		{Index: 1, Title: "Hike", ImageCount: MaxImages},
	}, s.List())
}

func TestStore_SaveFailureKeepsMutation(t *testing.T) {
	boom := errors.New("quota exceeded")
	saver := &recordingSaver{err: boom}
	s := NewStore(saver)

	idx, err := s.Create(context.Background(), "Trip", imgs(t, 1))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, s.Len())

	err = s.Delete(context.Background(), 0)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
}

func TestStore_DeleteReindexes(t *testing.T) {
	saver := &recordingSaver{}
	s := NewStore(saver)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d"} {
		_, err := s.Create(ctx, title, imgs(t, 1))
		require.NoError(t, err)
	}

	var notified []int
	s.OnDelete(func(i int) { notified = append(notified, i) })

	require.NoError(t, s.Delete(ctx, 1))
	assert.Equal(t, []int{1}, notified)

	var titles []string
	for i, sum := range s.List() {
		assert.Equal(t, i, sum.Index)
		titles = append(titles, sum.Title)
	}
	assert.Equal(t, "a,c,d", strings.Join(titles, ","))
	assert.Len(t, saver.saves[len(saver.saves)-1], 3)
}

func TestStore_DeleteOutOfRange(t *testing.T) {
	saver := &recordingSaver{}
	s := NewStore(saver)
	_, err := s.Create(context.Background(), "only", imgs(t, 1))
	require.NoError(t, err)

	called := false
	s.OnDelete(func(int) { called = true })

	for _, idx := range []int{-1, 1, 5} {
		err := s.Delete(context.Background(), idx)
		var ie *IndexError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, idx, ie.Index)
		assert.Equal(t, 1, ie.Len)
		assert.ErrorIs(t, err, ErrIndex)
	}
	assert.False(t, called)
	assert.Len(t, saver.saves, 1)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(context.Background(), "Trip", imgs(t, 2))
	require.NoError(t, err)

	rec, err := s.Get(0)
	require.NoError(t, err)
	rec.Images[0] = img(t, 42)
	rec.Title = "changed"

	again, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Trip", again.Title)
	assert.Equal(t, img(t, 0), again.Images[0])

	_, err = s.Get(3)
	assert.ErrorIs(t, err, ErrIndex)
}

func TestStore_Replace(t *testing.T) {
	saver := &recordingSaver{}
	s := NewStore(saver)

	r, err := Restore(uuid.Nil, " Loaded ", imgs(t, 2), time.Time{})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, "Loaded", r.Title)

	s.Replace([]Record{r})
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, saver.saves)
	assert.Equal(t, []Record{r}, s.Records())
}

func TestRestore_Invalid(t *testing.T) {
	_, err := Restore(uuid.New(), "x", []photo.Durable{{}}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Restore(uuid.New(), "", imgs(t, 1), time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckIndex(t *testing.T) {
	assert.NoError(t, CheckIndex(0, 1))
	assert.Error(t, CheckIndex(0, 0))
	assert.EqualError(t, CheckIndex(2, 2), "records: index 2 out of range [0, 2)")
}
