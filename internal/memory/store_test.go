package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadContextEmptyOnMissingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	msgs, err := s.LoadContext("u1", "c1")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSaveTurnAppendsUserThenAssistant(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.SaveTurn("u1", "c1", "hola", "¡hola!", TurnUsage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7}, nil, 10))

	msgs, err := s.LoadContext("u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, "hola", msgs[0].Content)
	require.Equal(t, RoleAssistant, msgs[1].Role)
	require.Equal(t, "¡hola!", msgs[1].Content)
	require.Equal(t, 7, msgs[1].Usage.TotalTokens)
}

func TestSaveTurnAppendsAnnexWhenPresent(t *testing.T) {
	s := NewStore(t.TempDir())
	annex := []map[string]string{{"key": "CCCH.Art1545"}}
	require.NoError(t, s.SaveTurn("u1", "c1", "q", "a", TurnUsage{}, annex, 10))

	msgs, err := s.LoadContext("u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, RoleSystemAnnex, msgs[2].Role)
}

func TestSaveTurnTruncatesToTwiceMaxHistory(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn("u1", "c1", "q", "a", TurnUsage{}, nil, 2))
	}
	msgs, err := s.LoadContext("u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 4) // 2*maxHistory
}

func TestTurnCountRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	n, err := s.LoadTurnCount("u1", "c1")
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.SaveTurnCount("u1", "c1", 3))
	n, err = s.LoadTurnCount("u1", "c1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestGetInteractionStatus(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.SaveTurnCount("u1", "c1", 8))

	status, err := s.GetInteractionStatus("u1", "c1", 10, 2)
	require.NoError(t, err)
	require.Equal(t, 8, status.Current)
	require.Equal(t, 2, status.Remaining)
	require.True(t, status.NearLimit)
	require.False(t, status.LimitReached)

	require.NoError(t, s.SaveTurnCount("u1", "c1", 10))
	status, err = s.GetInteractionStatus("u1", "c1", 10, 2)
	require.NoError(t, err)
	require.True(t, status.LimitReached)
}

func TestLockSerializesSameKeyConcurrentWriters(t *testing.T) {
	s := NewStore(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("u1", "c1")
			defer unlock()
			_ = s.SaveTurn("u1", "c1", "q", "a", TurnUsage{}, nil, 100)
		}()
	}
	wg.Wait()

	msgs, err := s.LoadContext("u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 40) // 20 turns * 2 entries, no torn writes
}
