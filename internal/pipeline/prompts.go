package pipeline

import (
	"strings"
)

// promptSampleRows is how many data rows are shown to the model.
const promptSampleRows = 5

// buildColumnMappingPrompt describes a table to the model and asks for a
// role -> column name mapping as a JSON object.
func buildColumnMappingPrompt(t Table) string {
	var b strings.Builder

	b.WriteString("You are analysing a spreadsheet exported from a bank or credit card statement.\n")
	b.WriteString("Headers may be in Hebrew or English.\n\n")

	b.WriteString("Columns (exact names, one per line):\n")
	for _, c := range t.Columns {
		b.WriteString("- " + c + "\n")
	}

	b.WriteString("\nSample rows (cells separated by \" | \"):\n")
	for i, row := range t.Rows {
		if i == promptSampleRows {
			break
		}
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = c.String()
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}

	b.WriteString("\nTask:\n")
	b.WriteString("Return a JSON object with these keys:\n")
	b.WriteString("- \"date\": the transaction date column (required)\n")
	b.WriteString("- \"amount\": the transaction amount column (required)\n")
	b.WriteString("- \"description\": the merchant or description column (required)\n")
	b.WriteString("- \"category\": the category column, or null\n")
	b.WriteString("- \"billing_date\": the billing or charge date column, or null\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Values must be copied EXACTLY from the column list above.\n")
	b.WriteString("2. Never use the same column for two keys.\n")
	b.WriteString("3. If a column cannot be determined, use null.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}
