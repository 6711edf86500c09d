package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordingSleeper(t *testing.T) {
	s := NewRecordingSleeper()

	s.Sleep(200 * time.Millisecond)
	s.Sleep(50 * time.Millisecond)

	calls := s.Calls()
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 50 * time.Millisecond}, calls)

	// Calls returns a copy; mutating it must not affect the sleeper.
	calls[0] = 0
	assert.Equal(t, 200*time.Millisecond, s.Calls()[0])
}

func TestSeqIDGenerator(t *testing.T) {
	g := NewSeqIDGenerator("vuln")
	assert.Equal(t, "vuln-1", g.Generate())
	assert.Equal(t, "vuln-2", g.Generate())

	def := NewSeqIDGenerator("")
	assert.Equal(t, "check-1", def.Generate())
}
