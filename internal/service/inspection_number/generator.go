// Package inspection_number generates inspection record ids. The id prefix
// encodes the creation channel (IND-, MAS-, ESP-, REP-, SF-).
package inspection_number

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/goatkit/pesflow/internal/models"
)

// Generator defines the interface for all inspection id generators
type Generator interface {
	// Generate creates a new globally unique id for the given channel
	Generate(channel models.Channel) (string, error)
}

// Common errors
var (
	ErrGeneratorNotConfigured = errors.New("inspection number generator not configured")
	ErrCounterUpdateFailed    = errors.New("failed to update counter")
)

// UUIDGenerator builds ids from random UUIDs. It needs no shared state, so it
// is safe for concurrent use and across processes.
type UUIDGenerator struct {
	newUUID func() (uuid.UUID, error)
}

// NewUUIDGenerator creates the default generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{newUUID: uuid.NewRandom}
}

// Generate returns PREFIX-<uuid without dashes, upper case>.
func (g *UUIDGenerator) Generate(channel models.Channel) (string, error) {
	if g == nil || g.newUUID == nil {
		return "", ErrGeneratorNotConfigured
	}
	id, err := g.newUUID()
	if err != nil {
		return "", err
	}
	return Format(channel, strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))), nil
}

// Format joins a channel prefix and a body.
func Format(channel models.Channel, body string) string {
	return channel.Prefix() + "-" + body
}
