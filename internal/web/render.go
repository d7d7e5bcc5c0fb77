package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var embeddedStatic embed.FS

// staticFS is the static asset tree rooted at "static".
var staticFS = mustSub(embeddedStatic, "static")

func mustSub(f fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

var pageNames = []string{"index", "show", "new", "edit", "login", "signup", "error"}

var pricePrinter = message.NewPrinter(language.MustParse("en-IN"))

// formatPrice renders a price in rupees with Indian digit grouping.
func formatPrice(p float64) string {
	return "₹" + pricePrinter.Sprint(number.Decimal(p, number.MaxFractionDigits(2)))
}

var funcs = template.FuncMap{
	"price":     formatPrice,
	"thumbnail": model.ThumbnailURL,
}

// page is the data every template receives.
type page struct {
	Title string
	User  *model.User
	Flash *session.Flash
	Data  any
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, eris.Wrapf(err, "web: parse template %s", name)
		}
		r.pages[name] = t
	}
	return r, nil
}

// render executes a page into a buffer first so a template failure yields a
// clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, ok := s.pages.pages[name]
	if !ok {
		zap.L().Error("web: unknown template", zap.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	p := page{
		Title: title,
		User:  currentUser(r),
		Flash: s.sessions.PopFlash(w, r),
		Data:  data,
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		zap.L().Error("web: render template", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
