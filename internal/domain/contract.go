package domain

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

const (
	FormatEmail    = "email"
	FormatDateTime = "date-time"
)

// FieldRule refines a field beyond being present. Zero values mean "no check".
type FieldRule struct {
	Type      FieldType `json:"type,omitempty"`
	Pattern   string    `json:"pattern,omitempty"`
	Enum      []string  `json:"enum,omitempty"`
	Minimum   *float64  `json:"minimum,omitempty"`
	MinLength int       `json:"minLength,omitempty"`
	Format    string    `json:"format,omitempty"`
}

// ContractSchema is the structural shape one service promises another.
// Required holds dotted paths such as "price.value".
type ContractSchema struct {
	Name     string               `json:"name"`
	Required []string             `json:"required"`
	Fields   map[string]FieldRule `json:"properties,omitempty"`
}

const (
	SchemaMovieSession = "MovieSession"
	SchemaBooking      = "Booking"
)

func minimum(v float64) *float64 {
	return &v
}

func MovieSessionSchema() ContractSchema {
	return ContractSchema{
		Name: SchemaMovieSession,
		Required: []string{
			"id", "movieId", "hallId", "startTime", "endTime",
			"price", "price.value", "price.currency", "availableSeats", "status",
		},
		Fields: map[string]FieldRule{
			"id":             {Type: TypeString, Pattern: `^sess-[0-9]+$`},
			"movieId":        {Type: TypeString, Pattern: `^mov-[0-9]+$`},
			"hallId":         {Type: TypeString},
			"startTime":      {Type: TypeString, Format: FormatDateTime},
			"endTime":        {Type: TypeString, Format: FormatDateTime},
			"price":          {Type: TypeObject},
			"price.value":    {Type: TypeNumber, Minimum: minimum(0)},
			"price.currency": {Type: TypeString, Pattern: `^[A-Z]{3}$`},
			"availableSeats": {Type: TypeInteger, Minimum: minimum(0)},
			"status":         {Type: TypeString, Enum: []string{SessionScheduled, SessionCancelled, SessionCompleted}},
		},
	}
}

func BookingSchema() ContractSchema {
	return ContractSchema{
		Name: SchemaBooking,
		Required: []string{
			"id", "sessionId", "userId", "customerName", "customerEmail",
			"totalPrice", "totalPrice.value", "totalPrice.currency", "status",
		},
		Fields: map[string]FieldRule{
			"id":                  {Type: TypeString, Pattern: `^bk-[0-9A-Za-z-]+$`},
			"sessionId":           {Type: TypeString, Pattern: `^sess-[0-9]+$`},
			"userId":              {Type: TypeString},
			"customerName":        {Type: TypeString, MinLength: 1},
			"customerEmail":       {Type: TypeString, Format: FormatEmail},
			"totalPrice":          {Type: TypeObject},
			"totalPrice.value":    {Type: TypeNumber, Minimum: minimum(0)},
			"totalPrice.currency": {Type: TypeString, Pattern: `^[A-Z]{3}$`},
			"status": {Type: TypeString, Enum: []string{
				string(BookingPending), string(BookingConfirmed), string(BookingCancelled),
			}},
		},
	}
}
