package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

const wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func zipOf(files map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, _ := w.Create(name)
		_, _ = fw.Write([]byte(content))
	}
	_ = w.Close()
	return buf.Bytes()
}

func minimalDocx(body string) []byte {
	return zipOf(map[string]string{
		"word/document.xml": `<w:document ` + wNS + `><w:body>` + body + `</w:body></w:document>`,
	})
}

// tbl renders rows of plain cells as a <w:tbl>.
func tbl(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<w:tbl>")
	for _, r := range rows {
		b.WriteString("<w:tr>")
		for _, c := range r {
			b.WriteString(`<w:tc><w:p><w:r><w:t>` + c + `</w:t></w:r></w:p></w:tc>`)
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

func TestReadBytes_docxTablesInOrder(t *testing.T) {
	body := `<w:p><w:r><w:t>月报</w:t></w:r></w:p>` +
		tbl([]string{"序号", "内容"}, []string{"1", "说明"}) +
		tbl([]string{"分部工程", "本月计划", "本月完成"}, []string{"ProjA", "10", "8"})

	doc, err := NewReader().ReadBytes("2024-01.docx", minimalDocx(body))
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if doc.Name != "2024-01.docx" {
		t.Errorf("name = %q", doc.Name)
	}
	if len(doc.Tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(doc.Tables))
	}
	want := models.Table{
		Header: []string{"分部工程", "本月计划", "本月完成"},
		Rows:   [][]string{{"ProjA", "10", "8"}},
	}
	if !reflect.DeepEqual(doc.Tables[1], want) {
		t.Errorf("table 1 = %+v, want %+v", doc.Tables[1], want)
	}
}

func TestReadBytes_docxCellText(t *testing.T) {
	// Split runs join, paragraphs join with a newline, pPr tab stops add nothing.
	body := `<w:tbl><w:tr>` +
		`<w:tc><w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
		`<w:r><w:t>开累</w:t></w:r><w:r><w:t xml:space="preserve">完成</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>工程量</w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl>`
	doc, err := NewReader().ReadBytes("a.docx", minimalDocx(body))
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Tables[0].Header; len(got) != 1 || got[0] != "开累完成\n工程量" {
		t.Errorf("header = %q", got)
	}
}

func TestReadBytes_docxMergedCells(t *testing.T) {
	body := `<w:tbl>` +
		`<w:tr>` +
		`<w:tc><w:p><w:r><w:t>分部工程</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>本月</w:t></w:r></w:p></w:tc>` +
		`</w:tr>` +
		`<w:tr>` +
		`<w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>ProjA</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>10</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>8</w:t></w:r></w:p></w:tc>` +
		`</w:tr>` +
		`<w:tr>` +
		`<w:tc><w:tcPr><w:vMerge/></w:tcPr><w:p/></w:tc>` +
		`<w:tc><w:p><w:r><w:t>5</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>4</w:t></w:r></w:p></w:tc>` +
		`</w:tr>` +
		`</w:tbl>`
	doc, err := NewReader().ReadBytes("m.docx", minimalDocx(body))
	if err != nil {
		t.Fatal(err)
	}
	want := models.Table{
		Header: []string{"分部工程", "本月", "本月"},
		Rows:   [][]string{{"ProjA", "10", "8"}, {"ProjA", "5", "4"}},
	}
	if !reflect.DeepEqual(doc.Tables[0], want) {
		t.Errorf("got %+v, want %+v", doc.Tables[0], want)
	}
}

func TestReadBytes_docxNestedTableIgnored(t *testing.T) {
	body := `<w:tbl><w:tr><w:tc>` + tbl([]string{"inner"}) + `<w:p><w:r><w:t>outer</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`
	doc, err := NewReader().ReadBytes("n.docx", minimalDocx(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(doc.Tables))
	}
	if got := doc.Tables[0].Header; len(got) != 1 || got[0] != "outer" {
		t.Errorf("header = %q", got)
	}
}

func TestReadBytes_docxWithContentTypes(t *testing.T) {
	for _, override := range []string{
		`<Override PartName="/word/document2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`,
		`<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>`,
	} {
		content := zipOf(map[string]string{
			"[Content_Types].xml": `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + override + `</Types>`,
			"word/document2.xml":  `<w:document ` + wNS + `><w:body>` + tbl([]string{"分部工程"}) + `</w:body></w:document>`,
		})
		doc, err := NewReader().ReadBytes("c.docx", content)
		if err != nil {
			t.Fatalf("ReadBytes: %v", err)
		}
		if len(doc.Tables) != 1 || doc.Tables[0].Header[0] != "分部工程" {
			t.Errorf("got %+v", doc.Tables)
		}
	}
}

func TestReadBytes_docxNotZip(t *testing.T) {
	_, err := NewReader().ReadBytes("x.docx", []byte("not a zip"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReadBytes_xlsx(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "分部工程")
	f.SetCellValue("Sheet1", "B1", "本月")
	f.SetCellValue("Sheet1", "B2", "计划")
	f.SetCellValue("Sheet1", "C2", "完成")
	f.SetCellValue("Sheet1", "A3", "ProjA")
	f.SetCellValue("Sheet1", "B3", 10)
	f.SetCellValue("Sheet1", "C3", 8)
	if err := f.MergeCell("Sheet1", "B1", "C1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Summary"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Summary", "A1", "合计")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	doc, err := NewReader().ReadBytes("report.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(doc.Tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(doc.Tables))
	}
	first := doc.Tables[0]
	if !reflect.DeepEqual(first.Header, []string{"分部工程", "本月", "本月"}) {
		t.Errorf("header = %q", first.Header)
	}
	if len(first.Rows) != 2 || !reflect.DeepEqual(first.Rows[1], []string{"ProjA", "10", "8"}) {
		t.Errorf("rows = %q", first.Rows)
	}
	if doc.Tables[1].Header[0] != "合计" {
		t.Errorf("summary header = %q", doc.Tables[1].Header)
	}
}

func TestReadBytes_xlsxFormattedNumbers(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"分部工程", "设计工程量", "开累完成", "本月计划", "本月完成"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{"隧洞", 12000, 4500, 1500, 1200.5}); err != nil {
		t.Fatal(err)
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle("Sheet1", "B2", "E2", style); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	doc, err := NewReader().ReadBytes("2024-03.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := []string{"隧洞", "12000", "4500", "1500", "1200.5"}
	if len(doc.Tables) != 1 || len(doc.Tables[0].Rows) != 1 || !reflect.DeepEqual(doc.Tables[0].Rows[0], want) {
		t.Errorf("rows = %q, want %q", doc.Tables[0].Rows, want)
	}
}

func minimalODS(tableXML string) []byte {
	return zipOf(map[string]string{
		"content.xml": `<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
			`xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" ` +
			`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">` +
			`<office:body><office:spreadsheet>` + tableXML + `</office:spreadsheet></office:body></office:document-content>`,
	})
}

func TestReadBytes_ods(t *testing.T) {
	table := `<table:table table:name="Sheet1">` +
		`<table:table-row>` +
		`<table:table-cell><text:p>分部工程</text:p></table:table-cell>` +
		`<table:table-cell table:number-columns-spanned="2"><text:p>本月</text:p></table:table-cell>` +
		`<table:covered-table-cell/>` +
		`<table:table-cell table:number-columns-repeated="1020"/>` +
		`</table:table-row>` +
		`<table:table-row>` +
		`<table:table-cell><text:p>Proj<text:s/>A</text:p></table:table-cell>` +
		`<table:table-cell table:number-columns-repeated="2"><text:p>5</text:p></table:table-cell>` +
		`</table:table-row>` +
		`<table:table-row table:number-rows-repeated="1048573"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>` +
		`</table:table>`
	doc, err := NewReader().ReadBytes("report.ods", minimalODS(table))
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := models.Table{
		Header: []string{"分部工程", "本月", "本月"},
		Rows:   [][]string{{"Proj A", "5", "5"}},
	}
	if len(doc.Tables) != 1 || !reflect.DeepEqual(doc.Tables[0], want) {
		t.Errorf("got %+v, want %+v", doc.Tables, want)
	}
}

func TestReadBytes_odsNumericCellsUseValue(t *testing.T) {
	table := `<table:table table:name="Sheet1">` +
		`<table:table-row>` +
		`<table:table-cell><text:p>分部工程</text:p></table:table-cell>` +
		`<table:table-cell><text:p>本月计划</text:p></table:table-cell>` +
		`<table:table-cell><text:p>完成率</text:p></table:table-cell>` +
		`</table:table-row>` +
		`<table:table-row>` +
		`<table:table-cell office:value-type="string"><text:p>隧洞</text:p></table:table-cell>` +
		`<table:table-cell office:value-type="float" office:value="12000"><text:p>12,000</text:p></table:table-cell>` +
		`<table:table-cell office:value-type="percentage" office:value="0.375"><text:p>37.50%</text:p></table:table-cell>` +
		`</table:table-row>` +
		`</table:table>`
	doc, err := NewReader().ReadBytes("2024-03.ods", minimalODS(table))
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := [][]string{{"隧洞", "12000", "0.375"}}
	if len(doc.Tables) != 1 || !reflect.DeepEqual(doc.Tables[0].Rows, want) {
		t.Errorf("rows = %q, want %q", doc.Tables[0].Rows, want)
	}
}

func TestReadBytes_odsContentNotFound(t *testing.T) {
	_, err := NewReader().ReadBytes("x.ods", zipOf(map[string]string{"other.xml": "<x/>"}))
	if err == nil || !strings.Contains(err.Error(), "content.xml not found") {
		t.Errorf("expected content.xml not found, got %v", err)
	}
}

func TestReadBytes_unsupported(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.txt", "noext"} {
		_, err := NewReader().ReadBytes(name, []byte("x"))
		if !errors.Is(err, models.ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestRead_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2024年3月进度.docx")
	if err := os.WriteFile(path, minimalDocx(tbl([]string{"分部工程"})), 0600); err != nil {
		t.Fatal(err)
	}
	doc, err := NewReader().Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Name != "2024年3月进度.docx" {
		t.Errorf("name = %q", doc.Name)
	}

	if _, err := NewReader().Read(filepath.Join(dir, "missing.docx")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{".docx": true, ".XLSX": true, ".ods": true, ".odt": true, ".pdf": false, "": false}
	for ext, want := range tests {
		if got := Supported(ext); got != want {
			t.Errorf("Supported(%q) = %v, want %v", ext, got, want)
		}
	}
}
