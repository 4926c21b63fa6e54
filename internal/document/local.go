package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tevasul/tevasul-backend/internal/wizard"
)

// ErrFontUnavailable means the local renderer has no UTF-8 font to draw
// Turkish and Arabic text with.
var ErrFontUnavailable = errors.New("document: no utf-8 font configured")

const fontFamily = "petition"

// LocalRenderer draws a simple two-page layout with fpdf. Arabic glyphs are
// not shaped, so the Arabic page is an approximation of the HTML one.
type LocalRenderer struct {
	FontPath string
	Font     []byte // used instead of FontPath when set

	once    sync.Once
	font    []byte
	fontErr error
}

func (r *LocalRenderer) Name() string { return "local" }

func (r *LocalRenderer) loadFont() ([]byte, error) {
	r.once.Do(func() {
		switch {
		case len(r.Font) > 0:
			r.font = r.Font
		case r.FontPath != "":
			r.font, r.fontErr = os.ReadFile(r.FontPath)
		default:
			r.fontErr = ErrFontUnavailable
		}
	})
	return r.font, r.fontErr
}

// RenderPDF ignores html and lays the form out directly.
func (r *LocalRenderer) RenderPDF(ctx context.Context, f wizard.Form, _ []byte) (out []byte, err error) {
	font, err := r.loadFont()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// fpdf panics on some malformed font files.
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("document: local render: %v", p)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Gönüllü Dönüş Formu", true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddUTF8FontFromBytes(fontFamily, "", font)

	turkishPage(pdf, f)
	arabicPage(pdf, f)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("document: local render: %w", err)
	}
	return buf.Bytes(), nil
}

func turkishPage(pdf *fpdf.Fpdf, f wizard.Form) {
	pdf.LTR()
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", 14)
	pdf.MultiCell(0, 7, "İL GÖÇ İDARESİ MÜDÜRLÜĞÜ'NE\nMERSİN", "", "C", false)
	pdf.Ln(10)

	pdf.SetFont(fontFamily, "", 11)
	pdf.CellFormat(0, 6, f.TravelDate, "", 1, "R", false, 0, "")
	pdf.Ln(6)
	body := fmt.Sprintf("Ben Suriye uyrukluyum. Adım %s. %s no'lu yabancı kimlik sahibiyim. %s Sınır Kapısından "+
		"geçici koruma haklarımdan feragat ederek Suriye'ye gönüllü dönüş işlemimin yapılması ve geçici koruma "+
		"kimlik kaydımın iptal edilmesi için gereğinin yapılmasını saygılarımla arz ederim.",
		f.FullName, f.Kimlik, cases.Upper(language.Turkish).String(f.Border.NameTR))
	pdf.MultiCell(0, 6, body, "", "J", false)

	if len(f.Companions) > 0 {
		pdf.Ln(6)
		pdf.CellFormat(0, 6, "REFAKATİMDEKİLER", "", 1, "L", false, 0, "")
		pdf.CellFormat(60, 7, "Kimlik No", "1", 0, "C", false, 0, "")
		pdf.CellFormat(0, 7, "İsim", "1", 1, "C", false, 0, "")
		for _, c := range f.Companions {
			pdf.CellFormat(60, 7, c.Kimlik, "1", 0, "C", false, 0, "")
			pdf.CellFormat(0, 7, c.Name, "1", 1, "C", false, 0, "")
		}
	}
	if f.GSM != "" {
		pdf.Ln(6)
		pdf.CellFormat(0, 6, "GSM : "+f.GSM, "", 1, "L", false, 0, "")
	}

	pdf.Ln(25)
	pdf.CellFormat(0, 6, "AD SOYAD", "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, f.FullName, "", 1, "R", false, 0, "")
}

func arabicPage(pdf *fpdf.Fpdf, f wizard.Form) {
	pdf.RTL()
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", 14)
	pdf.MultiCell(0, 7, "إلى مديرية إدارة الهجرة\nمرسين", "", "C", false)
	pdf.Ln(10)

	pdf.SetFont(fontFamily, "", 11)
	pdf.CellFormat(0, 6, "التاريخ: "+f.TravelDate, "", 1, "R", false, 0, "")
	pdf.Ln(6)
	body := fmt.Sprintf("أنا الموقّع أدناه %s، أحمل بطاقة الحماية المؤقتة رقم %s. أطلب منكم التفضل بتسليمي الأوراق "+
		"اللازمة لتنفيذ إجراءات العودة الطوعية إلى سوريا عبر معبر %s الحدودي.\nوتفضلوا بقبول فائق الاحترام والتقدير.",
		f.FullNameAR, f.Kimlik, f.Border.NameAR)
	pdf.MultiCell(0, 6, body, "", "R", false)

	pdf.Ln(25)
	pdf.CellFormat(0, 6, "المقدّم/ة:", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, f.FullNameAR, "", 1, "L", false, 0, "")
	pdf.LTR()
}
