// =============================================================================
// shopinvoice - File Manager Utility
// =============================================================================
//
// This module provides the file handling around an invoice run:
//   - Output directory management
//   - Output file naming
//   - The review report written next to each export
//
// REVIEW REPORT:
//   The export is always written, even when validation finds problems. The
//   review report lists every check with its findings so the person who
//   uploads the file knows what to look at first.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultExtension is appended to generated file names without one.
const DefaultExtension = ".csv"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for invoice runs.
type FileManager struct {
	// OutputDir is the directory where exports and reports are placed.
	OutputDir string
}

// NewFileManager creates a new FileManager for the output directory.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{OutputDir: outputDir}
}

// EnsureDirectories creates the output directory if it doesn't exist.
//
// RETURNS:
//   - An error if the directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// OutputPath resolves name against the output directory. Absolute names and
// names with a directory part are returned unchanged.
func (fm *FileManager) OutputPath(name string) string {
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(fm.OutputDir, name)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {store}     - Shop name
//     {from}      - First order date of the run
//     {to}        - Last order date of the run
//   - params: A map of placeholder values.
//
// RETURNS:
//   - The generated file name. DefaultExtension is appended when the result
//     has no extension.
//
// EXAMPLE:
//
//	format: "{store}_tripletex_{from}_{to}.csv"
//	params: {"store": "lillesky", "from": "2021-05-01", "to": "2021-05-31"}
//	output: "lillesky_tripletex_2021-05-01_2021-05-31.csv"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if filepath.Ext(result) == "" {
		result += DefaultExtension
	}
	return result
}

// ReviewReportPath returns the report path belonging to an export file:
// the export path with its extension replaced by "_review.txt".
func ReviewReportPath(exportPath string) string {
	return strings.TrimSuffix(exportPath, filepath.Ext(exportPath)) + "_review.txt"
}

// =============================================================================
// REVIEW REPORT
// =============================================================================

// ReviewSummary contains summary information about an invoice run.
type ReviewSummary struct {
	RunID      string
	Store      string
	From       string
	To         string
	ExportFile string
	StartTime  time.Time
	EndTime    time.Time

	Rows           int
	OrdinaryOrders int
	RefundOrders   int
	Passed         bool

	Checks []CheckSummary
}

// CheckSummary contains the outcome of one validation check.
type CheckSummary struct {
	Name          string
	Passed        bool
	Informational bool
	Messages      []string
}

// WriteReviewReport writes a review summary to path.
//
// PARAMETERS:
//   - summary: The summary to write.
//   - path: Destination file; its directory must exist.
//
// RETURNS:
//   - An error if the file cannot be written.
func WriteReviewReport(summary ReviewSummary, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create review report: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	verdict := "No irregularities detected"
	if !summary.Passed {
		verdict = "NEEDS MANUAL REVIEW"
	}

	header := fmt.Sprintf("Tripletex Invoice Review\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:          %s\n"+
		"  Store:           %s\n"+
		"  Order Dates:     %s to %s\n"+
		"  Export File:     %s\n"+
		"  Start Time:      %s\n"+
		"  Duration:        %s\n\n"+
		"Statistics:\n"+
		"  Invoice Lines:   %d\n"+
		"  Ordinary Orders: %d\n"+
		"  Refund Orders:   %d\n\n"+
		"Verdict: %s\n\n",
		summary.RunID,
		summary.Store,
		summary.From, summary.To,
		summary.ExportFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond).String(),
		summary.Rows,
		summary.OrdinaryOrders,
		summary.RefundOrders,
		verdict)
	writer.WriteString(header)

	writer.WriteString("Checks:\n")
	writer.WriteString("--------------------------------------------------------------------------------\n")
	for _, check := range summary.Checks {
		status := "OK"
		switch {
		case check.Passed:
		case check.Informational:
			status = "NOTE"
		default:
			status = "FAILED"
		}
		writer.WriteString(fmt.Sprintf("  [%-6s] %s\n", status, check.Name))
		for _, msg := range check.Messages {
			writer.WriteString(fmt.Sprintf("           %s\n", msg))
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Review\n")

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush review report: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
