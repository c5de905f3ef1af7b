package job

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/streetsignal/streetsignal/internal/model"
)

var exportHeader = []string{
	"District",
	"Street 1", "Count 1",
	"Street 2", "Count 2",
	"Street 3", "Count 3",
	"Total POIs", "Total Streets",
	"Status", "Notes",
}

// ExportFilename builds a timestamped download name such as
// "street_signal_20260831_143000.csv".
func ExportFilename(format string, now time.Time) string {
	return fmt.Sprintf("street_signal_%s.%s", now.Format("20060102_150405"), format)
}

// WriteCSV writes results as CSV with one row per district.
func WriteCSV(w io.Writer, results []model.DistrictResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, res := range results {
		if err := cw.Write(resultRow(res)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %s", res.District)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes results as a single-sheet workbook with the same layout
// as the CSV export.
func WriteXLSX(w io.Writer, results []model.DistrictResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportHeader {
		header.AddCell().SetString(col)
	}

	for _, res := range results {
		row := sheet.AddRow()
		for _, cell := range resultRow(res) {
			row.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}

func resultRow(res model.DistrictResult) []string {
	top := model.PadTop(res.Top)
	status := "Error"
	if res.Success {
		status = "Success"
	}
	return []string{
		res.District,
		top[0].Name, strconv.Itoa(top[0].POICount),
		top[1].Name, strconv.Itoa(top[1].POICount),
		top[2].Name, strconv.Itoa(top[2].POICount),
		strconv.Itoa(res.TotalPOIs),
		strconv.Itoa(res.TotalStreets),
		status,
		res.Error,
	}
}
