package rank

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/alecgard/studyhub/internal/apperr"
	"github.com/alecgard/studyhub/internal/ledger"
	"github.com/alecgard/studyhub/internal/user"
)

type memGroups map[string][]string

func (m memGroups) MemberIDs(_ context.Context, group string) ([]string, error) {
	ids, ok := m[group]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "group not found")
	}
	return ids, nil
}

type memLedgers struct {
	entries map[string][]ledger.Entry
	err     error
}

func (m *memLedgers) Entries(_ context.Context, id string) ([]ledger.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries[id], nil
}

type memProfiles map[string]*user.Card

func (m memProfiles) Card(_ context.Context, id string) (*user.Card, error) {
	c, ok := m[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "profile not found")
	}
	return c, nil
}

func day(y int, m time.Month, d int) ledger.Date {
	return ledger.Date{Year: y, Month: m, Day: d}
}

func durations(entries []Entry) map[string]int64 {
	out := map[string]int64{}
	for _, e := range entries {
		out[e.ID] = e.Duration
	}
	return out
}

func ids(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestRankDayExample(t *testing.T) {
	svc := NewService(
		memGroups{"studyA": {"u1", "u2"}},
		&memLedgers{entries: map[string][]ledger.Entry{
			"u1": {{Date: day(2024, time.May, 1), Duration: 100}},
		}},
		memProfiles{
			"u1": {ID: "u1", Nickname: "one", Handle: "h1", Tier: 11, SolvedCount: 40},
			"u2": {ID: "u2", Nickname: "two", Handle: "h2"},
		},
		4,
	)

	got, err := svc.RankDay(context.Background(), "studyA", day(2024, time.May, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Entry{ID: "u1", Nickname: "one", Handle: "h1", Tier: 11, SolvedCount: 40, Duration: 100}, got[0])
	assert.Equal(t, "u2", got[1].ID)
	assert.Equal(t, int64(0), got[1].Duration)
}

func TestRankDayOrderingAndTies(t *testing.T) {
	d := day(2024, time.May, 1)
	members := []string{"a", "b", "c", "d", "e", "f"}
	svc := NewService(
		memGroups{"g": members},
		&memLedgers{entries: map[string][]ledger.Entry{
			"a": {{Date: d, Duration: 10}},
			"b": {{Date: d, Duration: 50}},
			"c": {{Date: d, Duration: 10}},
			"d": {{Date: d, Duration: 50}},
			"e": {{Date: day(2024, time.May, 2), Duration: 999}},
		}},
		memProfiles{},
		3,
	)

	for i := 0; i < 20; i++ {
		got, err := svc.RankDay(context.Background(), "g", d)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "d", "a", "c", "e", "f"}, ids(got))
		for j := 1; j < len(got); j++ {
			assert.GreaterOrEqual(t, got[j-1].Duration, got[j].Duration)
		}
	}
}

func TestRankMonthFiltersByCalendarMonth(t *testing.T) {
	svc := NewService(
		memGroups{"g": {"u1", "u2"}},
		&memLedgers{entries: map[string][]ledger.Entry{
			"u1": {
				{Date: day(2024, time.May, 1), Duration: 10},
				{Date: day(2024, time.May, 31), Duration: 20},
				{Date: day(2024, time.June, 1), Duration: 1000},
			},
			"u2": {
				{Date: day(2023, time.May, 15), Duration: 500},
				{Date: day(2024, time.May, 15), Duration: 5},
			},
		}},
		memProfiles{},
		2,
	)

	got, err := svc.RankMonth(context.Background(), "g", ledger.YearMonth{Year: 2024, Month: time.May})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"u1": 30, "u2": 5}, durations(got))
	assert.Equal(t, []string{"u1", "u2"}, ids(got))
}

func TestRankUnknownGroup(t *testing.T) {
	svc := NewService(memGroups{}, &memLedgers{}, memProfiles{}, 1)
	_, err := svc.RankDay(context.Background(), "nope", day(2024, time.May, 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRankEmptyGroup(t *testing.T) {
	svc := NewService(memGroups{"g": {}}, &memLedgers{}, memProfiles{}, 1)
	got, err := svc.RankDay(context.Background(), "g", day(2024, time.May, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRankPropagatesLedgerErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(memGroups{"g": {"u1", "u2"}}, &memLedgers{err: boom}, memProfiles{}, 2)
	_, err := svc.RankDay(context.Background(), "g", day(2024, time.May, 1))
	assert.ErrorIs(t, err, boom)
}

func TestExportMonth(t *testing.T) {
	svc := NewService(
		memGroups{"g": {"u1", "u2"}},
		&memLedgers{entries: map[string][]ledger.Entry{
			"u1": {{Date: day(2024, time.May, 3), Duration: 3600}},
			"u2": {{Date: day(2024, time.May, 4), Duration: 7200}},
		}},
		memProfiles{"u2": {ID: "u2", Nickname: "two", Handle: "h2", Tier: 7, SolvedCount: 12}},
		2,
	)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportMonth(context.Background(), &buf, "g", ledger.YearMonth{Year: 2024, Month: time.May}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Place", "ID", "Nickname", "Handle", "Tier", "Solved", "Seconds", "Hours"}, rows[0])
	assert.Equal(t, []string{"1", "u2", "two", "h2", "7", "12", "7200", "2.00"}, rows[1])
	assert.Equal(t, "u1", rows[2][1])
	assert.Equal(t, "3600", rows[2][6])
}
