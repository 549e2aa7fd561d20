package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSession = `{
	"id": "sess-1001",
	"movieId": "mov-1",
	"hallId": "hall-1",
	"startTime": "2026-11-01T18:00:00",
	"endTime": "2026-11-01T20:30:00",
	"price": {"value": 12.5, "currency": "EUR"},
	"availableSeats": 80,
	"status": "Scheduled"
}`

const validBooking = `{
	"id": "bk-1001",
	"sessionId": "sess-1001",
	"userId": "user-1",
	"customerName": "Ada",
	"customerEmail": "ada@example.com",
	"totalPrice": {"value": 25, "currency": "EUR"},
	"status": "PENDING"
}`

func TestContractValidator_ValidPayloads(t *testing.T) {
	v := NewContractValidator()

	assert.True(t, v.Validate(domain.SchemaMovieSession, []byte(validSession)))
	assert.True(t, v.Validate(domain.SchemaBooking, []byte(validBooking)))
}

func TestContractValidator_MissingRequiredField(t *testing.T) {
	v := NewContractValidator()

	for _, field := range domain.MovieSessionSchema().Required {
		if strings.Contains(field, ".") {
			continue
		}
		t.Run(field, func(t *testing.T) {
			raw := removeField(t, validSession, field)
			assert.False(t, v.Validate(domain.SchemaMovieSession, raw))
		})
	}
}

func TestContractValidator_NestedPaths(t *testing.T) {
	v := NewContractValidator()

	tests := []struct {
		name string
		raw  string
	}{
		{"missing currency", strings.Replace(validSession, `"currency": "EUR"`, `"other": "x"`, 1)},
		{"null value", strings.Replace(validSession, `"value": 12.5`, `"value": null`, 1)},
		{"price not an object", strings.Replace(validSession, `{"value": 12.5, "currency": "EUR"}`, `12.5`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(domain.SchemaMovieSession, []byte(tt.raw))

			var violation *domain.ContractViolationError
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, domain.SchemaMovieSession, violation.Schema)
			assert.NotEmpty(t, violation.Violations)
		})
	}
}

func TestContractValidator_NullRequiredField(t *testing.T) {
	v := NewContractValidator()

	raw := strings.Replace(validSession, `"hallId": "hall-1"`, `"hallId": null`, 1)

	err := v.Check(domain.SchemaMovieSession, []byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field: hallId")
}

func TestContractValidator_ExtraFieldsIgnored(t *testing.T) {
	v := NewContractValidator()

	raw := strings.Replace(validSession, `"status": "Scheduled"`,
		`"status": "Scheduled", "subtitles": ["en", "es"], "format": {"imax": true}`, 1)

	assert.True(t, v.Validate(domain.SchemaMovieSession, []byte(raw)))
}

func TestContractValidator_UnknownSchemaFailsClosed(t *testing.T) {
	v := NewContractValidator()

	assert.False(t, v.Validate("Invoice", []byte(validSession)))
	assert.True(t, errors.Is(v.Check("Invoice", []byte(validSession)), domain.ErrUnknownSchema))
}

func TestContractValidator_MalformedPayload(t *testing.T) {
	v := NewContractValidator()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"truncated", `{"id": "sess-1001"`},
		{"array", `[1, 2, 3]`},
		{"string", `"sess-1001"`},
		{"html error page", `<html>502 Bad Gateway</html>`},
		{"trailing data", validSession + `garbage`},
		{"two objects", validSession + validSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.Validate(domain.SchemaMovieSession, []byte(tt.raw)))
		})
	}
}

func TestContractValidator_LenientIgnoresFieldRules(t *testing.T) {
	v := NewContractValidator()

	raw := strings.Replace(validBooking, `"ada@example.com"`, `"not-an-email"`, 1)

	assert.True(t, v.Validate(domain.SchemaBooking, []byte(raw)))
}

func TestContractValidator_Strict(t *testing.T) {
	v := NewContractValidator(WithStrictContracts(true))

	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"valid", validBooking, true},
		{"bad email", strings.Replace(validBooking, `"ada@example.com"`, `"not-an-email"`, 1), false},
		{"bad id pattern", strings.Replace(validBooking, `"bk-1001"`, `"booking-1"`, 1), false},
		{"uuid id", strings.Replace(validBooking, `"bk-1001"`, `"bk-3f2b8c1e-9a4d-4e7b-8c21-5d6f0a1b2c3d"`, 1), true},
		{"id with spaces", strings.Replace(validBooking, `"bk-1001"`, `"bk-10 01"`, 1), false},
		{"unknown status", strings.Replace(validBooking, `"PENDING"`, `"EXPIRED"`, 1), false},
		{"negative total", strings.Replace(validBooking, `"value": 25`, `"value": -1`, 1), false},
		{"lowercase currency", strings.Replace(validBooking, `"EUR"`, `"eur"`, 1), false},
		{"empty name", strings.Replace(validBooking, `"Ada"`, `""`, 1), false},
		{"number as string", strings.Replace(validBooking, `"value": 25`, `"value": "25"`, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, v.Validate(domain.SchemaBooking, []byte(tt.raw)))
		})
	}
}

func TestContractValidator_StrictAcceptsGeneratedIDs(t *testing.T) {
	v := NewContractValidator(WithStrictContracts(true))
	ctx := context.Background()

	for _, ids := range []domain.IDGenerator{
		memory.NewIDGenerator(memory.IDStrategyUUID, "bk", 0),
		memory.NewIDGenerator(memory.IDStrategySequence, "bk", memory.BookingSequenceStart),
	} {
		id, err := ids.NextID(ctx)
		require.NoError(t, err)

		raw := strings.Replace(validBooking, `"bk-1001"`, `"`+id+`"`, 1)
		assert.True(t, v.Validate(domain.SchemaBooking, []byte(raw)), id)
	}
}

func TestContractValidator_StrictDateTimeAndInteger(t *testing.T) {
	v := NewContractValidator(WithStrictContracts(true))

	assert.True(t, v.Validate(domain.SchemaMovieSession, []byte(validSession)))

	zoned := strings.Replace(validSession, `"2026-11-01T18:00:00"`, `"2026-11-01T18:00:00Z"`, 1)
	assert.True(t, v.Validate(domain.SchemaMovieSession, []byte(zoned)))

	badTime := strings.Replace(validSession, `"2026-11-01T18:00:00"`, `"tomorrow"`, 1)
	assert.False(t, v.Validate(domain.SchemaMovieSession, []byte(badTime)))

	fractional := strings.Replace(validSession, `"availableSeats": 80`, `"availableSeats": 80.5`, 1)
	assert.False(t, v.Validate(domain.SchemaMovieSession, []byte(fractional)))
}

func TestContractValidator_Register(t *testing.T) {
	v := NewContractValidator()

	err := v.Register(domain.ContractSchema{Name: "Invoice", Required: []string{"id"}})
	require.NoError(t, err)
	assert.True(t, v.Validate("Invoice", []byte(`{"id": "inv-1"}`)))

	err = v.Register(domain.ContractSchema{Name: "Invoice"})
	assert.Error(t, err, "schemas are immutable once registered")

	err = v.Register(domain.ContractSchema{
		Name:   "Broken",
		Fields: map[string]domain.FieldRule{"id": {Pattern: "("}},
	})
	assert.Error(t, err)
}

func TestContractValidator_Schema(t *testing.T) {
	v := NewContractValidator()

	schema, ok := v.Schema(domain.SchemaBooking)
	require.True(t, ok)
	assert.Contains(t, schema.Required, "customerEmail")

	_, ok = v.Schema("Invoice")
	assert.False(t, ok)
}

func removeField(t *testing.T, raw, field string) []byte {
	t.Helper()

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), `"`+field+`"`) {
			continue
		}
		lines = append(lines, line)
	}
	out := strings.Join(lines, "\n")
	// the removed line may have been the last member
	out = strings.Replace(out, ",\n}", "\n}", 1)
	return []byte(out)
}
