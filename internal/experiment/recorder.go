package experiment

import (
	"io"
	"strconv"
	"strings"
	"time"

	"foodval-go/internal/models"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Recorder turns completed trials into rows. Rows are only ever appended.
type Recorder struct {
	session     Session
	now         func() time.Time
	rows        []Row
	phase1IDs   map[int]bool
	phase1Sizes map[int]models.Size
}

// NewRecorder creates a recorder for session. phase1 is the set of images
// shown in Phase 1; it decides whether a Phase 2 image is old or new.
func NewRecorder(session Session, phase1 []models.Image, now func() time.Time) *Recorder {
	ids := make(map[int]bool, len(phase1))
	for _, img := range phase1 {
		ids[img.ID] = true
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		session:     session,
		now:         now,
		phase1IDs:   ids,
		phase1Sizes: make(map[int]models.Size, len(phase1)),
	}
}

// RecordImageView logs a Phase 1 image that stayed on screen for displayed.
func (r *Recorder) RecordImageView(image models.Image, displayed time.Duration) {
	r.phase1Sizes[image.ID] = image.Size

	row := r.base(EntryPhase1Image, 1)
	row.ImageID = strconv.Itoa(image.ID)
	row.Filename = image.Filename
	row.ImageSize = string(image.Size)
	row.ResponseTime = seconds(displayed)
	r.rows = append(r.rows, row)
}

// RecordAttentionCheck logs the answer to an attention check shown since startedAt.
func (r *Recorder) RecordAttentionCheck(phase int, question models.AttentionQuestion, selected string, startedAt time.Time) {
	row := r.base(EntryAttentionCheck, phase)
	row.ResponseTime = seconds(r.now().Sub(startedAt))
	row.AttentionCheckID = question.ID
	row.AttentionResponse = selected
	row.AttentionCorrect = strconv.FormatBool(selected == question.CorrectAnswer)
	r.rows = append(r.rows, row)
}

// RecordPhase2Response logs the memory and valuation answers for a Phase 2 image.
func (r *Recorder) RecordPhase2Response(image models.Image, memory string, paymentCents, confidence int, startedAt time.Time) {
	imageType, phase1Size := ImageTypeNew, Phase1SizeNotShown
	if r.phase1IDs[image.ID] {
		imageType = ImageTypeOld
		phase1Size = Phase1SizeUnknown
		if size, ok := r.phase1Sizes[image.ID]; ok {
			phase1Size = string(size)
		}
	}

	row := r.base(EntryPhase2Response, 2)
	row.ImageID = strconv.Itoa(image.ID)
	row.Filename = image.Filename
	row.ImageSize = string(image.Size)
	row.Phase1Size = phase1Size
	row.ImageType = imageType
	row.MemoryResponse = memory
	row.PaymentResponse = strconv.FormatFloat(float64(paymentCents)/100, 'f', 2, 64)
	row.Confidence = strconv.Itoa(confidence)
	row.ResponseTime = seconds(r.now().Sub(startedAt))
	r.rows = append(r.rows, row)
}

// Rows returns a copy of the rows in emission order.
func (r *Recorder) Rows() []Row {
	rows := make([]Row, len(r.rows))
	copy(rows, r.rows)
	return rows
}

func (r *Recorder) Len() int {
	return len(r.rows)
}

// CSV returns all rows without a header, one line each.
func (r *Recorder) CSV() string {
	var b strings.Builder
	_ = WriteCSV(&b, r.rows, false)
	return b.String()
}

// Export writes the header and all rows to w.
func (r *Recorder) Export(w io.Writer) error {
	return WriteCSV(w, r.rows, true)
}

func (r *Recorder) base(entry EntryType, phase int) Row {
	return Row{
		ParticipantID: r.session.Participant(),
		EntryType:     entry,
		Phase:         strconv.Itoa(phase),
		SessionID:     r.session.ID,
		Timestamp:     r.now().UTC().Format(timestampLayout),
	}
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
