// Package exporter writes engine runs to disk.
//
// CSVWriter is the low-level writer: headers, streaming and a UTF-8 BOM for
// spreadsheet compatibility. RunExporter builds on it to produce the files of
// one run:
//
//	indices.json  the complete run document
//	ledger.csv    one audit row per index computation
//	summary.csv   one headline row per index, failures included
//	indices.xlsx  summary, ledger and validation sheets (optional)
//
// Example usage:
//
//	exp := exporter.NewRunExporter("out", logger)
//	files, err := exp.Export(result, exporter.Options{Workbook: true})
package exporter
