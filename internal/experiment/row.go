package experiment

import (
	"io"
	"strings"
)

type EntryType string

const (
	EntryPhase1Image    EntryType = "phase1_image"
	EntryPhase2Response EntryType = "phase2_response"
	EntryAttentionCheck EntryType = "attention_check"
)

const (
	ImageTypeOld = "old"
	ImageTypeNew = "new"

	Phase1SizeNotShown = "not_shown_in_phase1"
	Phase1SizeUnknown  = "unknown_size"

	UnknownParticipant = "unknown"
)

// Columns is the CSV schema shared by every row.
var Columns = []string{
	"participant_id",
	"entry_type",
	"phase",
	"image_id",
	"filename",
	"image_size",
	"phase1_size",
	"image_type",
	"memory_response",
	"payment_response",
	"confidence",
	"response_time",
	"attention_check_id",
	"attention_response",
	"attention_correct",
	"snack_preference",
	"desire_to_eat",
	"hunger",
	"fullness",
	"satisfaction",
	"eating_capacity",
	"food_allergies",
	"food_allergies_other",
	"session_id",
	"timestamp",
}

// Row is one logged event. Values are already formatted; columns a variant
// does not use stay empty. The questionnaire columns are filled by the end
// of session survey, never by the trial engine.
type Row struct {
	ParticipantID      string
	EntryType          EntryType
	Phase              string
	ImageID            string
	Filename           string
	ImageSize          string
	Phase1Size         string
	ImageType          string
	MemoryResponse     string
	PaymentResponse    string
	Confidence         string
	ResponseTime       string
	AttentionCheckID   string
	AttentionResponse  string
	AttentionCorrect   string
	SnackPreference    string
	DesireToEat        string
	Hunger             string
	Fullness           string
	Satisfaction       string
	EatingCapacity     string
	FoodAllergies      string
	FoodAllergiesOther string
	SessionID          string
	Timestamp          string
}

// Record returns the unescaped values in Columns order.
func (r Row) Record() []string {
	return []string{
		r.ParticipantID,
		string(r.EntryType),
		r.Phase,
		r.ImageID,
		r.Filename,
		r.ImageSize,
		r.Phase1Size,
		r.ImageType,
		r.MemoryResponse,
		r.PaymentResponse,
		r.Confidence,
		r.ResponseTime,
		r.AttentionCheckID,
		r.AttentionResponse,
		r.AttentionCorrect,
		r.SnackPreference,
		r.DesireToEat,
		r.Hunger,
		r.Fullness,
		r.Satisfaction,
		r.EatingCapacity,
		r.FoodAllergies,
		r.FoodAllergiesOther,
		r.SessionID,
		r.Timestamp,
	}
}

// Line serializes the row as one newline-terminated CSV line.
func (r Row) Line() string {
	return joinLine(r.Record())
}

// EscapeField quotes a value that contains a comma, quote or newline and
// doubles any quotes inside it.
func EscapeField(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

// HeaderLine is the column header as a CSV line.
func HeaderLine() string {
	return joinLine(Columns)
}

// WriteCSV writes rows to w, optionally preceded by the header line.
func WriteCSV(w io.Writer, rows []Row, header bool) error {
	if header {
		if _, err := io.WriteString(w, HeaderLine()); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := io.WriteString(w, row.Line()); err != nil {
			return err
		}
	}
	return nil
}

func joinLine(values []string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeField(v))
	}
	b.WriteByte('\n')
	return b.String()
}
