package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

func sampleRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ClientID: fmt.Sprintf("CL%03d", i),
			Name:     fmt.Sprintf("Client %d", i),
			COName:   "Officer A",
			Branch:   "Main",
		}
	}
	return out
}

func TestRecordFromRow(t *testing.T) {
	row := merge.OutputRow{
		ClientID:       merge.Text("CL001"),
		MaturityDate:   "13-Mar-2023",
		LastAmountPaid: merge.Number(1500),
		LoanCycle:      merge.Number(3),
		GuarantorCell:  merge.Text("0300-1111111"),
	}

	r := RecordFromRow(row)
	assert.Equal(t, "CL001", r.ClientID)
	assert.Equal(t, "13-Mar-2023", r.MaturityDate)
	assert.Equal(t, "1500", r.LastAmountPaid)
	assert.Equal(t, "3", r.LoanCycle)
	assert.Equal(t, "", r.Spouse)
	assert.Len(t, r.values(), len(copyColumns))
}

func TestRecord_JSON(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{
		"id": 99,
		"Client ID": "CL001",
		"Name": " Jane ",
		"Loan Amount": 50000,
		"Loan Cycle": 3,
		"Spouse": null,
		"Extra": "ignored"
	}`), &r)
	require.NoError(t, err)

	assert.Zero(t, r.ID)
	assert.Equal(t, "CL001", r.ClientID)
	assert.Equal(t, "Jane", r.Name)
	assert.Equal(t, "50000", r.LoanAmount)
	assert.Equal(t, "3", r.LoanCycle)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Client ID":"CL001"`)

	err = json.Unmarshal([]byte(`{"Name": {"first": "x"}}`), &r)
	assert.Error(t, err)
}

func TestRecord_Matches(t *testing.T) {
	r := Record{ClientID: "CL001", Name: "Jane Client", COName: "Officer A", Branch: "Main Branch", Address: "Lahore"}

	assert.True(t, r.Matches("cl00"))
	assert.True(t, r.Matches("JANE"))
	assert.True(t, r.Matches("officer"))
	assert.True(t, r.Matches(" main "))
	assert.False(t, r.Matches("lahore"), "address is not searchable")
	assert.False(t, r.Matches(""))
	assert.False(t, r.Matches("   "))
}

func TestInternationalPhone(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"0300-1111111", "923001111111", true},
		{"3001111111", "923001111111", true},
		{"+92 300 1111111", "923001111111", true},
		{"923001111111", "923001111111", true},
		{"12345", "9212345", true},
		{"-", "", false},
		{"", "", false},
		{"n/a", "", false},
	}

	for _, tt := range tests {
		got, ok := InternationalPhone(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}

	assert.Equal(t, "tel:+923001111111", CallLink("0300-1111111"))
	assert.Equal(t, "https://wa.me/923001111111", WhatsAppLink("0300-1111111"))
	assert.Empty(t, CallLink("-"))
	assert.Empty(t, WhatsAppLink(""))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	var progress [][2]int
	err := m.ReplaceAll(ctx, sampleRecords(5), func(saved, total int) {
		progress = append(progress, [2]int{saved, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	all, err := m.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.EqualValues(t, 1, all[0].ID)
	assert.EqualValues(t, 5, all[4].ID)

	found, err := m.Search(ctx, "cl003")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Client 3", found[0].Name)

	found, err = m.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, m.ReplaceAll(ctx, sampleRecords(1), nil))
	n, _ = m.Count(ctx)
	assert.EqualValues(t, 1, n)

	require.NoError(t, m.DeleteAll(ctx))
	n, _ = m.Count(ctx)
	assert.Zero(t, n)
}

func TestMemory_CancelKeepsPrevious(t *testing.T) {
	m := NewMemory(1)
	require.NoError(t, m.ReplaceAll(context.Background(), sampleRecords(3), nil))

	ctx, cancel := context.WithCancel(context.Background())
	err := m.ReplaceAll(ctx, sampleRecords(10), func(saved, total int) {
		if saved == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)

	n, _ := m.Count(context.Background())
	assert.EqualValues(t, 3, n)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_a\\b`, escapeLike(`50%_a\b`))
}

// TestPostgres runs against a real database when GUARANTOR_TEST_DATABASE_URL is set.
func TestPostgres(t *testing.T) {
	url := os.Getenv("GUARANTOR_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GUARANTOR_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)

	p := NewPostgres(pool, 2)
	defer p.Close()

	require.NoError(t, p.EnsureSchema(ctx))
	require.NoError(t, p.ReplaceAll(ctx, sampleRecords(5), nil))

	n, err := p.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	found, err := p.Search(ctx, "CL00%")
	require.NoError(t, err)
	assert.Empty(t, found, "wildcards match literally")

	found, err = p.Search(ctx, "client 4")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "CL004", found[0].ClientID)

	all, err := p.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	require.NoError(t, p.DeleteAll(ctx))
	n, err = p.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
