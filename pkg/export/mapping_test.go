package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var statusNow = time.Date(2024, 6, 24, 12, 0, 0, 0, time.UTC)

func TestSelectedRowBasicFields(t *testing.T) {
	record := map[string]any{
		"docId":                     "ЕАЭС KG417/028.01.44434",
		"unifiedCountryCode.value":  "KG",
		"conformityDocKindName":     "Декларация о соответствии",
		"technicalRegulationId":     `["ТР ТС 021/2011"]`,
		"docStartDate":              map[string]any{"$date": "2024-01-15T00:00:00.000Z"},
		"docValidityDate":           map[string]any{"$date": "2026-01-14T00:00:00.000Z"},
		"applicantDetails":          map[string]any{"businessEntityName": "ОсОО Ромашка"},
		"conformityAuthorityV2Details": map[string]any{
			"businessEntityName": "Орган по сертификации",
		},
	}

	row := selectedRowAt(record, statusNow)

	require.Equal(t, "ЕАЭС KG417/028.01.44434", row["Регистрационный номер документа"])
	require.Equal(t, "Кыргызстан", row["Страна"])
	require.Equal(t, "Декларация о соответствии", row["Вид документа"])
	require.Equal(t, "15.01.2024 - 14.01.2026", row["Срок действия"])
	require.Equal(t, "ОсОО Ромашка", row["Заявитель"])
	require.Equal(t, "Орган по сертификации", row["Наименование органа по оценке соответствия"])
	require.Equal(t, "действует", row["Статус действия"])

	for _, column := range OutputColumns {
		_, ok := row[column]
		require.True(t, ok, "row must carry column %q", column)
	}
}

func TestSelectedRowUnknownCountryKeptAsCode(t *testing.T) {
	row := selectedRowAt(map[string]any{"unifiedCountryCode.value": "XX"}, statusNow)
	require.Equal(t, "XX", row["Страна"])
}

func TestSelectedRowNestedCountryForm(t *testing.T) {
	row := selectedRowAt(map[string]any{
		"unifiedCountryCode": map[string]any{"value": "BY"},
	}, statusNow)
	require.Equal(t, "Беларусь", row["Страна"])
}

func TestSelectedRowTermVariants(t *testing.T) {
	start := map[string]any{"$date": "2024-01-15T00:00:00.000Z"}
	end := map[string]any{"$date": "2026-01-14T00:00:00.000Z"}

	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"both dates", map[string]any{"docStartDate": start, "docValidityDate": end}, "15.01.2024 - 14.01.2026"},
		{"start only", map[string]any{"docStartDate": start}, "15.01.2024"},
		{"end only", map[string]any{"docValidityDate": end}, "14.01.2026"},
		{"neither", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, selectedRowAt(tt.record, statusNow)["Срок действия"])
		})
	}
}

func TestSelectedRowManufacturerFallsBackToApplicant(t *testing.T) {
	record := map[string]any{
		"applicantDetails": map[string]any{"businessEntityName": "ООО Заявитель"},
	}
	row := selectedRowAt(record, statusNow)
	require.Equal(t, "ООО Заявитель", row["Заявитель"])
	require.Equal(t, "ООО Заявитель", row["Изготовитель"])
}

func TestSelectedRowManufacturerFromStructuredList(t *testing.T) {
	record := map[string]any{
		"technicalRegulationObjectDetails": map[string]any{
			"manufacturerDetails": `[{"businessEntityName": "Завод А"}, {"businessEntityName": "Завод Б"}, {"businessEntityName": "Завод А"}]`,
		},
	}
	row := selectedRowAt(record, statusNow)
	require.Equal(t, "Завод А | Завод Б", row["Изготовитель"],
		"list values join with a separator, duplicates removed")
}

func TestExtractFromStructured(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"object", map[string]any{"businessEntityName": "Завод"}, "Завод"},
		{"object string", `{"businessEntityName": "Завод"}`, "Завод"},
		{"object missing key", map[string]any{"other": "x"}, ""},
		{"scalar", "просто текст", ""},
		{"nil", nil, ""},
		{"list skips non-objects", []any{"x", map[string]any{"businessEntityName": "Завод"}}, "Завод"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractFromStructured(tt.value, "businessEntityName"))
		})
	}
}

func TestDocStatus(t *testing.T) {
	future := map[string]any{"$date": "2026-01-01T00:00:00.000Z"}
	past := map[string]any{"$date": "2020-01-01T00:00:00.000Z"}

	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"valid until future", map[string]any{"docValidityDate": future}, "действует"},
		{"expired", map[string]any{"docValidityDate": past}, "прекращен"},
		{"note marks terminated", map[string]any{
			"docStatusDetails": map[string]any{"noteText": "Действие прекращено по заявлению"},
		}, "прекращен"},
		{"status code 09", map[string]any{
			"docStatusDetails": map[string]any{"docStatusCode": "09"},
		}, "прекращен"},
		{"status code 10", map[string]any{
			"docStatusDetails": map[string]any{"docStatusCode": "10"},
		}, "прекращен"},
		{"other status code", map[string]any{
			"docStatusDetails": map[string]any{"docStatusCode": "01"},
		}, "действует"},
		{"no signal", map[string]any{}, ""},
		{"end date wins over status code", map[string]any{
			"docValidityDate":  past,
			"docStatusDetails": map[string]any{"docStatusCode": "01"},
		}, "прекращен"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, docStatus(tt.record, statusNow))
		})
	}
}
