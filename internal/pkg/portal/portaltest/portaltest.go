// Package portaltest runs an in-process stub of the SSP portal: a Web
// Forms login page plus a paginated anomaly GridView, issuing and
// checking the hidden postback fields the way the real server does.
package portaltest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	LoginPath      = "/index.aspx"
	AttendancePath = "/FW99001Z.aspx"
	GridTarget     = "ctl00$ContentPlaceHolder1$gvWeb012"

	sessionCookie = "ASP.NET_SessionId"
)

// Row is one anomaly row the stub renders.
type Row struct {
	Date   string
	Range  string
	Reason string
}

// Config controls the stub's behavior.
type Config struct {
	Account string
	Secret  string
	// Pages holds the rows served per page, page 1 first. An empty
	// slice serves a single page with no table.
	Pages [][]Row
	// AlwaysNextPage makes the pager advertise a next page forever.
	AlwaysNextPage bool
	// GroupingRows adds a non-data row with the wrong cell count to
	// every page.
	GroupingRows bool
	// FailAttendanceGets makes the first N attendance GETs answer 500.
	FailAttendanceGets int
	// ResponseDelay slows every attendance response down.
	ResponseDelay time.Duration
}

// Server is the running stub. Request counters let tests assert retry
// and no-retry behavior.
type Server struct {
	*httptest.Server
	cfg Config

	mu             sync.Mutex
	stateSeq       int
	issuedState    string
	loginPosts     int
	postbacks      int
	attendanceGets int
}

func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, s.handleLogin)
	mux.HandleFunc(AttendancePath, s.handleAttendance)
	s.Server = httptest.NewServer(mux)
	return s
}

// NewTLS serves the stub over a self-signed certificate.
func NewTLS(cfg Config) *Server {
	s := &Server{cfg: cfg}
	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, s.handleLogin)
	mux.HandleFunc(AttendancePath, s.handleAttendance)
	s.Server = httptest.NewTLSServer(mux)
	return s
}

func (s *Server) LoginPosts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginPosts
}

func (s *Server) Postbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postbacks
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fmt.Fprint(w, s.loginPage(""))
		return
	}

	s.mu.Lock()
	s.loginPosts++
	issued := s.issuedState
	s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("__VIEWSTATE") != issued {
		// Stale or missing state: the real server throws a validation
		// error page with no hidden fields.
		fmt.Fprint(w, "<html><body>Validation of viewstate MAC failed.</body></html>")
		return
	}
	if r.PostFormValue("ctl00$lblAccount") != s.cfg.Account ||
		r.PostFormValue("ctl00$lblPassWord") != s.cfg.Secret {
		fmt.Fprint(w, s.loginPage("帳號或密碼錯誤"))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "stub-session"})
	fmt.Fprintf(w, `<html><body>
<a href="logout.aspx">登出</a>
%s
<span>歡迎使用員工自助服務</span>
</body></html>`, s.hiddenFields())
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ResponseDelay > 0 {
		time.Sleep(s.cfg.ResponseDelay)
	}
	if cookie, err := r.Cookie(sessionCookie); err != nil || cookie.Value != "stub-session" {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	page := 1
	if r.Method == http.MethodPost {
		s.mu.Lock()
		s.postbacks++
		issued := s.issuedState
		s.mu.Unlock()

		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("__VIEWSTATE") != issued {
			fmt.Fprint(w, "<html><body>Validation of viewstate MAC failed.</body></html>")
			return
		}
		if r.PostFormValue("__EVENTTARGET") == GridTarget {
			arg := r.PostFormValue("__EVENTARGUMENT")
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "Page$"))
			if err != nil {
				http.Error(w, "bad event argument", http.StatusBadRequest)
				return
			}
			page = n
		}
	} else {
		s.mu.Lock()
		s.attendanceGets++
		gets := s.attendanceGets
		s.mu.Unlock()
		if gets <= s.cfg.FailAttendanceGets {
			http.Error(w, "transient failure", http.StatusInternalServerError)
			return
		}
	}

	fmt.Fprint(w, s.attendancePage(page))
}

func (s *Server) nextState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateSeq++
	s.issuedState = fmt.Sprintf("vs-%04d", s.stateSeq)
	return s.issuedState
}

func (s *Server) hiddenFields() string {
	state := s.nextState()
	return fmt.Sprintf(`<input type="hidden" name="__VIEWSTATE" value="%s"/>
<input type="hidden" name="__VIEWSTATEGENERATOR" value="CA0B0334"/>
<input type="hidden" name="__EVENTVALIDATION" value="ev-%s"/>`, state, state)
}

func (s *Server) loginPage(banner string) string {
	var b strings.Builder
	b.WriteString("<html><body><form method=\"post\">\n")
	b.WriteString(s.hiddenFields())
	if banner != "" {
		fmt.Fprintf(&b, "\n<span class=\"error\">%s</span>", banner)
	}
	b.WriteString(`
<input name="ctl00$lblAccount" type="text"/>
<input name="ctl00$lblPassWord" type="password"/>
<input name="ctl00$Submit" type="submit" value="送出"/>
</form></body></html>`)
	return b.String()
}

func (s *Server) attendancePage(page int) string {
	var b strings.Builder
	b.WriteString("<html><body>\n<a href=\"logout.aspx\">登出</a>\n<form method=\"post\">\n")
	b.WriteString(s.hiddenFields())

	totalPages := len(s.cfg.Pages)
	if totalPages == 0 {
		// No anomalies: the GridView is not rendered at all.
		b.WriteString("\n<div id=\"tabs-2\"></div></form></body></html>")
		return b.String()
	}

	b.WriteString("\n<div id=\"tabs-2\">\n")
	b.WriteString(`<table id="ContentPlaceHolder1_gvWeb012" cellspacing="0" cellpadding="3" rules="rows">` + "\n")
	b.WriteString("<tr><th>出勤日期</th><th>異常原因</th></tr>\n")

	var rows []Row
	if page >= 1 && page <= totalPages {
		rows = s.cfg.Pages[page-1]
	}
	for i, row := range rows {
		style := "RowStyle"
		if i%2 == 1 {
			style = "AlternatingRowStyle"
		}
		fmt.Fprintf(&b, `<tr class="%s"><td><span id="ContentPlaceHolder1_gvWeb012_lblWork_Date_%d">%s</span><br/><span id="ContentPlaceHolder1_gvWeb012_lblCard_Time_%d">%s&nbsp;</span></td><td>%s</td></tr>`+"\n",
			style, i, row.Date, i, row.Range, row.Reason)
	}
	if s.cfg.GroupingRows {
		b.WriteString(`<tr class="RowStyle"><td colspan="2">小計</td></tr>` + "\n")
	}

	last := totalPages
	if s.cfg.AlwaysNextPage {
		last = page + 1
	}
	if last > 1 {
		b.WriteString(`<tr class="PagerStyle"><td colspan="2">`)
		for p := 1; p <= last; p++ {
			if p == page {
				fmt.Fprintf(&b, "<span>%d</span>&nbsp;", p)
				continue
			}
			fmt.Fprintf(&b, `<a href="javascript:__doPostBack('%s','Page$%d')">%d</a>&nbsp;`, GridTarget, p, p)
		}
		b.WriteString("</td></tr>\n")
	}

	b.WriteString("</table>\n</div></form></body></html>")
	return b.String()
}
