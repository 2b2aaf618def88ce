package spreadsheets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Ограничения на загружаемый список игроков.
const (
	maxImportFileSize  = 5 << 20
	maxImportedPlayers = 512
)

var (
	ErrEmptySheet     = errors.New("sheet has no player rows")
	ErrMissingNameCol = errors.New("header must contain a first name column")
	ErrFileTooLarge   = errors.New("player list file is too large")
	ErrTooManyPlayers = errors.New("player list has too many rows")
)

// PlayerRow - одна строка импортируемого списка игроков.
type PlayerRow struct {
	Line      int
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

type columns struct {
	first, last, gender, level int
}

var headerAliases = map[string]string{
	"first name": "first", "first_name": "first", "firstname": "first", "name": "first", "имя": "first",
	"last name": "last", "last_name": "last", "lastname": "last", "surname": "last", "фамилия": "last",
	"gender": "gender", "sex": "gender", "пол": "gender",
	"level": "level", "rating": "level", "уровень": "level",
}

// ParsePlayers reads the first sheet of an XLSX workbook. The first row is the
// header; recognised columns are first name, last name, gender and level in any
// order. Rows without a first name are skipped.
func ParsePlayers(r io.Reader) ([]PlayerRow, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read player list: %w", err)
	}
	if len(data) > maxImportFileSize {
		return nil, ErrFileTooLarge
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("XLSX file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}

	cols, err := headerColumns(rows[0])
	if err != nil {
		return nil, err
	}

	players := make([]PlayerRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		p := PlayerRow{
			Line:      i + 2,
			FirstName: cell(row, cols.first),
			LastName:  cell(row, cols.last),
			Gender:    strings.ToLower(cell(row, cols.gender)),
			Level:     cell(row, cols.level),
		}
		if p.FirstName == "" {
			continue
		}
		players = append(players, p)
		if len(players) > maxImportedPlayers {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyPlayers, maxImportedPlayers)
		}
	}
	if len(players) == 0 {
		return nil, ErrEmptySheet
	}
	return players, nil
}

func headerColumns(header []string) (columns, error) {
	cols := columns{first: -1, last: -1, gender: -1, level: -1}
	for i, h := range header {
		switch headerAliases[strings.ToLower(strings.TrimSpace(h))] {
		case "first":
			if cols.first < 0 {
				cols.first = i
			}
		case "last":
			cols.last = i
		case "gender":
			cols.gender = i
		case "level":
			cols.level = i
		}
	}
	if cols.first < 0 {
		return cols, ErrMissingNameCol
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
