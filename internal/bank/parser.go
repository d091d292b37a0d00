package bank

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"quizbot/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a delimited question bank. Each row is
// prompt, option, option[, option...], correctIndex.
// Rows that do not fit that shape are skipped; only read errors are returned.
func Parse(r io.Reader) ([]domain.Question, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}
	return ParseBytes(data), nil
}

// ParseBytes is Parse over an in-memory source.
func ParseBytes(data []byte) []domain.Question {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = DetectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	questions := make([]domain.Question, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			break
		}
		if q, ok := parseRow(record); ok {
			questions = append(questions, q)
		}
	}
	return questions
}

// DetectDelimiter inspects the first non-blank line: semicolon when it has a
// semicolon and no comma, comma otherwise.
func DetectDelimiter(data []byte) rune {
	for _, line := range strings.Split(string(bytes.TrimPrefix(data, utf8BOM)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(line, ";") && !strings.Contains(line, ",") {
			return ';'
		}
		return ','
	}
	return ','
}

func parseRow(record []string) (domain.Question, bool) {
	fields := make([]string, len(record))
	for i, f := range record {
		fields[i] = strings.TrimSpace(f)
	}
	if len(fields) < 4 {
		return domain.Question{}, false
	}

	correct, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return domain.Question{}, false
	}
	prompt := fields[0]
	if prompt == "" {
		return domain.Question{}, false
	}

	options := fields[1 : len(fields)-1]
	for len(options) > 0 && options[len(options)-1] == "" {
		options = options[:len(options)-1]
	}
	for _, opt := range options {
		if opt == "" {
			return domain.Question{}, false
		}
	}

	q := domain.Question{
		Prompt:       prompt,
		Options:      append([]string(nil), options...),
		CorrectIndex: correct,
	}
	if !q.Valid() {
		return domain.Question{}, false
	}
	q.CorrectText = q.Options[correct]
	q.CanonicalOptions = append([]string(nil), options...)
	return q, true
}
