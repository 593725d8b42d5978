package assets

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordIDProvider issues desk-record identifiers. Identifiers combine a desk
// prefix, a millisecond timestamp, and a random suffix so that two imports in
// the same instant still get distinct ids without a central counter.
type RecordIDProvider interface {
	NewRecordID(kind DeskKind) (string, error)
}

const recordIDSuffixLength = 8

type recordIDProvider struct {
	clock func() time.Time
}

// NewRecordIDProvider constructs the default RecordIDProvider.
func NewRecordIDProvider(clock func() time.Time) RecordIDProvider {
	if clock == nil {
		clock = time.Now
	}
	return &recordIDProvider{clock: clock}
}

func (p *recordIDProvider) NewRecordID(kind DeskKind) (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	suffix := strings.ReplaceAll(value.String(), "-", "")[:recordIDSuffixLength]
	millis := p.clock().UnixMilli()
	return fmt.Sprintf("%s%d_%s", kind.IDPrefix(), millis, suffix), nil
}
