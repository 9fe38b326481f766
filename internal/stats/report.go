package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gramevo/internal/model"
)

const ReportFile = "all_generations_data.csv"

// ReportHeader is the first row of every per-generation report.
var ReportHeader = []string{"generation", "individual", "accuracy", "num_layers", "best_accuracy", "best_num_layers"}

// ReportWriter streams report rows as CSV. The header is written on
// construction.
type ReportWriter struct {
	w *csv.Writer
}

func NewReportWriter(w io.Writer) (*ReportWriter, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(ReportHeader); err != nil {
		return nil, err
	}
	return &ReportWriter{w: writer}, nil
}

func (r *ReportWriter) Write(row model.IndividualResult) error {
	return r.w.Write([]string{
		strconv.Itoa(row.Generation),
		strconv.Itoa(row.Individual),
		strconv.FormatFloat(row.Accuracy, 'f', -1, 64),
		strconv.Itoa(row.LayerCount),
		strconv.FormatFloat(row.BestAccuracy, 'f', -1, 64),
		strconv.Itoa(row.BestLayerCount),
	})
}

func (r *ReportWriter) Flush() error {
	r.w.Flush()
	return r.w.Error()
}

// WriteReport writes rows to runDir/all_generations_data.csv.
func WriteReport(runDir string, rows []model.IndividualResult) (string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(runDir, ReportFile)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer, err := NewReportWriter(file)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	if err := writer.Flush(); err != nil {
		return "", err
	}
	return path, nil
}

// ReadReport parses a report written by ReportWriter.
func ReadReport(r io.Reader) ([]model.IndividualResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(ReportHeader)

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("report is empty")
		}
		return nil, err
	}
	for i, name := range ReportHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected report header column %d: %q", i, header[i])
		}
	}

	rows := []model.IndividualResult{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseReportRecord(record)
		if err != nil {
			return nil, fmt.Errorf("report line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

func ReadReportFile(path string) ([]model.IndividualResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadReport(file)
}

func parseReportRecord(record []string) (model.IndividualResult, error) {
	var (
		row  model.IndividualResult
		errs [6]error
	)
	row.Generation, errs[0] = strconv.Atoi(record[0])
	row.Individual, errs[1] = strconv.Atoi(record[1])
	row.Accuracy, errs[2] = strconv.ParseFloat(record[2], 64)
	row.LayerCount, errs[3] = strconv.Atoi(record[3])
	row.BestAccuracy, errs[4] = strconv.ParseFloat(record[4], 64)
	row.BestLayerCount, errs[5] = strconv.Atoi(record[5])
	for i, err := range errs {
		if err != nil {
			return model.IndividualResult{}, fmt.Errorf("column %s: %w", ReportHeader[i], err)
		}
	}
	return row, nil
}
