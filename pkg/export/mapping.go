package export

import (
	"strings"
	"time"

	"github.com/eaeu-tools/odata-export/pkg/normalize"
)

// OutputColumns is the fixed CSV schema, in order. Column names are the
// Russian headers the downstream consumers of these exports expect.
var OutputColumns = []string{
	"Регистрационный номер документа",
	"Страна",
	"Вид документа",
	"Срок действия",
	"Заявитель",
	"Изготовитель",
	"Технический регламент",
	"Наименование органа по оценке соответствия",
	"Статус действия",
}

// CountryNamesRU maps partition codes to Russian display names.
var CountryNamesRU = map[string]string{
	"AM": "Армения",
	"BY": "Беларусь",
	"KG": "Кыргызстан",
	"KZ": "Казахстан",
	"RU": "Россия",
}

// SelectedRow projects a normalized record onto the output schema.
func SelectedRow(record map[string]any) map[string]string {
	return selectedRowAt(record, time.Now().UTC())
}

func selectedRowAt(record map[string]any, now time.Time) map[string]string {
	countryCode := strings.TrimSpace(normalize.Flatten(record[normalize.CountryField]))
	if countryCode == "" {
		countryCode = strings.TrimSpace(normalize.Flatten(normalize.GetNested(record, normalize.CountryField, "")))
	}
	countryName := countryCode
	if name, ok := CountryNamesRU[countryCode]; ok {
		countryName = name
	}

	applicant := normalize.Flatten(normalize.GetNested(record, "applicantDetails.businessEntityName", ""))
	manufacturer := extractFromStructured(
		normalize.GetNested(record, "technicalRegulationObjectDetails.manufacturerDetails", ""),
		"businessEntityName",
	)
	if manufacturer == "" {
		manufacturer = applicant
	}

	start := normalize.DayDotted(normalize.DateValue(record, "docStartDate"))
	end := normalize.DayDotted(normalize.DateValue(record, "docValidityDate"))
	term := start
	if start != "" && end != "" {
		term = start + " - " + end
	} else if end != "" {
		term = end
	}

	return map[string]string{
		"Регистрационный номер документа": normalize.Flatten(record["docId"]),
		"Страна":                          countryName,
		"Вид документа":                   normalize.Flatten(record["conformityDocKindName"]),
		"Срок действия":                   term,
		"Заявитель":                       applicant,
		"Изготовитель":                    manufacturer,
		"Технический регламент":           normalize.Flatten(normalize.ParseStructured(record["technicalRegulationId"])),
		"Наименование органа по оценке соответствия": normalize.Flatten(
			normalize.GetNested(record, "conformityAuthorityV2Details.businessEntityName", ""),
		),
		"Статус действия": docStatus(record, now),
	}
}

// extractFromStructured pulls a named field out of a structured value:
// directly for an object, joined with " | " across the objects of a list
// (duplicates removed, order preserved).
func extractFromStructured(value any, key string) string {
	switch parsed := normalize.ParseStructured(value).(type) {
	case map[string]any:
		return normalize.Flatten(parsed[key])
	case []any:
		var values []string
		seen := make(map[string]bool)
		for _, item := range parsed {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			inner, exists := obj[key]
			if !exists {
				continue
			}
			text := normalize.Flatten(inner)
			if text != "" && !seen[text] {
				seen[text] = true
				values = append(values, text)
			}
		}
		return strings.Join(values, " | ")
	default:
		return ""
	}
}

// docStatus derives the validity status: primarily from the validity end
// date compared to now, then from the status note text and status code.
func docStatus(record map[string]any, now time.Time) string {
	endText := strings.TrimSpace(normalize.Flatten(normalize.DateValue(record, "docValidityDate")))
	if endText != "" {
		if endDt, ok := normalize.ParseISOUTC(endText); ok {
			if endDt.Before(now) {
				return "прекращен"
			}
			return "действует"
		}
	}

	noteText := strings.ToLower(strings.TrimSpace(
		normalize.Flatten(normalize.GetNested(record, "docStatusDetails.noteText", ""))))
	if strings.Contains(noteText, "прекращ") {
		return "прекращен"
	}

	statusCode := strings.TrimSpace(
		normalize.Flatten(normalize.GetNested(record, "docStatusDetails.docStatusCode", "")))
	if statusCode == "09" || statusCode == "10" {
		return "прекращен"
	}
	if statusCode != "" {
		return "действует"
	}
	return ""
}
