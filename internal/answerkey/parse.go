package answerkey

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Question types recognized in an answer key.
const (
	TypeMCQ = "MCQ" // single correct option
	TypeMSQ = "MSQ" // set of correct options, all-or-nothing
	TypeNAT = "NAT" // numeric value or inclusive min:max range
)

// Column names expected in the header row. The correct-answer column may be
// spelled either ColKey or ColKeyRange; exactly one must be present.
const (
	ColSection  = "Section"
	ColType     = "Type"
	ColNumber   = "Question No"
	ColKey      = "Key"
	ColKeyRange = "Key/Range"
	ColMarks    = "Marks"
	ColNegative = "Negative"
)

// MalformedKeyError reports a structurally invalid answer-key document.
// Row 1 is the header row; Row 0 means the document as a whole.
type MalformedKeyError struct {
	Row    int
	Column string
	Msg    string
}

func (e *MalformedKeyError) Error() string {
	switch {
	case e.Row == 0 && e.Column == "":
		return "malformed answer key: " + e.Msg
	case e.Column == "":
		return fmt.Sprintf("malformed answer key: row %d: %s", e.Row, e.Msg)
	case e.Row == 0:
		return fmt.Sprintf("malformed answer key: column %q: %s", e.Column, e.Msg)
	default:
		return fmt.Sprintf("malformed answer key: row %d, column %q: %s", e.Row, e.Column, e.Msg)
	}
}

// Section is a named question grouping in first-appearance order (1-based).
type Section struct {
	Name  string
	Order int
}

// Question is the scoring metadata parsed from one key row.
type Question struct {
	Number        int
	Type          string
	Section       string
	CorrectAnswer string
	MarksPositive float64
	MarksNegative float64
}

// Key is the parsed answer-key document: sections ordered by Order,
// questions ordered by Number.
type Key struct {
	Sections  []Section
	Questions []Question
}

// Parse converts a comma-separated answer-key document into sections and
// per-question scoring metadata. existingOrder maps section names already
// stored for the exam to their display order; a label found there keeps its
// stored order instead of being renumbered. Any structural problem returns a
// *MalformedKeyError and no partial result.
func Parse(raw []byte, existingOrder map[string]int) (*Key, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MalformedKeyError{Msg: "document is empty"}
		}
		return nil, &MalformedKeyError{Row: 1, Msg: err.Error()}
	}

	// Spreadsheet exports routinely prefix the document with a UTF-8 BOM,
	// which would otherwise glue itself onto the first header name.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	keyCol, err := resolveKeyColumn(cols)
	if err != nil {
		return nil, err
	}
	for _, required := range []string{ColSection, ColType, ColNumber, ColMarks, ColNegative} {
		if _, ok := cols[required]; !ok {
			return nil, &MalformedKeyError{Column: required, Msg: "required column missing"}
		}
	}

	field := func(rec []string, col string) string {
		idx, ok := cols[col]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	var (
		questions []Question
		seenNum   = map[int]int{} // question number -> line it first appeared on
		secOrder  = map[string]int{}
		distinct  = 0
	)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &MalformedKeyError{Row: pe.Line, Msg: pe.Err.Error()}
			}
			return nil, &MalformedKeyError{Msg: err.Error()}
		}
		// Physical line of the record, so error locations survive blank
		// lines the reader silently skips.
		rowNum, _ := r.FieldPos(0)

		sectionName := field(rec, ColSection)
		if sectionName == "" {
			// Blank rows (or rows with no section label) carry nothing.
			continue
		}

		qType := strings.ToUpper(field(rec, ColType))
		if qType == "" {
			qType = TypeMCQ
		}
		switch qType {
		case TypeMCQ, TypeMSQ, TypeNAT:
		default:
			return nil, &MalformedKeyError{Row: rowNum, Column: ColType, Msg: "unknown question type " + strconv.Quote(qType)}
		}

		if _, ok := secOrder[sectionName]; !ok {
			distinct++
			if ord, ok := existingOrder[sectionName]; ok {
				secOrder[sectionName] = ord
			} else {
				secOrder[sectionName] = distinct
			}
		}

		number, err := strconv.Atoi(field(rec, ColNumber))
		if err != nil || number <= 0 {
			return nil, &MalformedKeyError{Row: rowNum, Column: ColNumber, Msg: "not a positive integer"}
		}
		if prev, dup := seenNum[number]; dup {
			return nil, &MalformedKeyError{Row: rowNum, Column: ColNumber,
				Msg: fmt.Sprintf("duplicate question number %d (first seen on row %d)", number, prev)}
		}
		seenNum[number] = rowNum

		pos, err := parseMarks(field(rec, ColMarks))
		if err != nil {
			return nil, &MalformedKeyError{Row: rowNum, Column: ColMarks, Msg: err.Error()}
		}
		neg, err := parseMarks(field(rec, ColNegative))
		if err != nil {
			return nil, &MalformedKeyError{Row: rowNum, Column: ColNegative, Msg: err.Error()}
		}

		questions = append(questions, Question{
			Number:        number,
			Type:          qType,
			Section:       sectionName,
			CorrectAnswer: field(rec, keyCol),
			MarksPositive: pos,
			MarksNegative: neg,
		})
	}

	sort.Slice(questions, func(i, j int) bool { return questions[i].Number < questions[j].Number })

	sections := make([]Section, 0, len(secOrder))
	for name, ord := range secOrder {
		sections = append(sections, Section{Name: name, Order: ord})
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	return &Key{Sections: sections, Questions: questions}, nil
}

func resolveKeyColumn(cols map[string]int) (string, error) {
	_, hasKey := cols[ColKey]
	_, hasRange := cols[ColKeyRange]
	switch {
	case hasKey && hasRange:
		return "", &MalformedKeyError{Column: ColKeyRange, Msg: "both " + strconv.Quote(ColKey) + " and " + strconv.Quote(ColKeyRange) + " present; exactly one expected"}
	case hasKey:
		return ColKey, nil
	case hasRange:
		return ColKeyRange, nil
	default:
		return "", &MalformedKeyError{Column: ColKey, Msg: "correct-answer column missing (expected " + strconv.Quote(ColKey) + " or " + strconv.Quote(ColKeyRange) + ")"}
	}
}

func parseMarks(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a decimal number")
	}
	if v < 0 {
		return 0, errors.New("must be non-negative")
	}
	return v, nil
}
