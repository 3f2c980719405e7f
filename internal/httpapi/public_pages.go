package httpapi

import (
	"html/template"
	"net/http"
)

const (
	androidTestingURL = "https://play.google.com/apps/testing/com.lunda.padel"
	androidStoreURL   = "https://play.google.com/store/apps/details?id=com.lunda.padel"
	privacyUpdated    = "2026-08-14"
)

var publicPageT = template.Must(template.New("public").Parse(publicLayout))

type publicPageData struct {
	Title string
	Body  template.HTML
}

func (a *api) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	renderPublicPage(w, http.StatusOK, "Lunda", publicHomeBody)
}

func (a *api) handlePrivacyWeb(w http.ResponseWriter, r *http.Request) {
	renderPublicPage(w, http.StatusOK, "Privacy Policy", publicPrivacyBody)
}

func renderPublicPage(w http.ResponseWriter, status int, title string, body template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = publicPageT.Execute(w, publicPageData{
		Title: title,
		Body:  body,
	})
}

const publicLayout = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>{{.Title}}</title>
    <style>
      :root{
        --bg:#0b0f0d;
        --ink:#f8fafc;
        --muted:#cbd5e1;
        --accent:#10b981;
        --accent-2:#34d399;
        --card:rgba(15,32,25,0.85);
        --line:rgba(148,163,184,0.25);
        --shadow:0 18px 40px rgba(2,12,8,0.6);
        color-scheme:dark;
      }
      *{box-sizing:border-box}
      body{
        margin:0;
        font-family:"Work Sans","Helvetica Neue",Arial,sans-serif;
        color:var(--ink);
        background:var(--bg);
        min-height:100vh;
      }
      header{
        display:flex;
        align-items:center;
        justify-content:space-between;
        gap:16px;
        padding:24px clamp(20px,4vw,64px);
      }
      .logo{
        display:flex;
        align-items:center;
        gap:14px;
        text-decoration:none;
        color:inherit;
      }
      .logo-mark{
        width:46px;
        height:46px;
        border-radius:14px;
        display:flex;
        align-items:center;
        justify-content:center;
        font-weight:700;
        letter-spacing:1px;
        color:white;
        background:linear-gradient(135deg,var(--accent),var(--accent-2));
      }
      .logo-title{
        font-weight:700;
        font-size:18px;
      }
      .logo-sub{
        font-size:12px;
        color:var(--muted);
      }
      main{
        max-width:960px;
        margin:0 auto;
        padding:0 clamp(20px,4vw,64px) 80px;
      }
      h1,h2{
        margin:0 0 12px;
      }
      .badge{
        display:inline-flex;
        align-items:center;
        gap:8px;
        padding:6px 12px;
        border-radius:999px;
        border:1px solid rgba(16,185,129,0.25);
        background:rgba(16,185,129,0.1);
        color:var(--accent);
        font-size:12px;
        font-weight:600;
        letter-spacing:0.4px;
        text-transform:uppercase;
      }
      .lead{
        color:var(--muted);
        line-height:1.6;
        margin:0 0 16px;
      }
      .cta{
        display:flex;
        flex-wrap:wrap;
        gap:12px;
        margin-top:20px;
      }
      .button{
        display:inline-flex;
        align-items:center;
        justify-content:center;
        padding:12px 18px;
        border-radius:12px;
        border:1px solid var(--accent);
        background:var(--accent);
        color:white;
        text-decoration:none;
        font-weight:600;
      }
      .card{
        background:var(--card);
        border:1px solid var(--line);
        border-radius:18px;
        padding:18px;
        box-shadow:var(--shadow);
      }
      .grid{
        display:grid;
        grid-template-columns:repeat(auto-fit,minmax(220px,1fr));
        gap:16px;
        margin-top:24px;
      }
      footer{
        margin-top:36px;
        padding-top:18px;
        border-top:1px solid var(--line);
        color:var(--muted);
        font-size:13px;
        display:flex;
        flex-wrap:wrap;
        gap:12px;
        align-items:center;
        justify-content:space-between;
      }
    </style>
  </head>
  <body>
    <header>
      <a class="logo" href="/">
        <span class="logo-mark">LU</span>
        <span>
          <div class="logo-title">Lunda</div>
          <div class="logo-sub">Padel games with friends</div>
        </span>
      </a>
    </header>
    <main>
      {{.Body}}
      <footer>
        <div>Copyright 2026 Lunda. Built for padel groups.</div>
        <div><a href="/privacy" style="color:var(--accent)">Privacy policy</a></div>
      </footer>
    </main>
  </body>
</html>`

var publicHomeBody = template.HTML(`
<section>
  <span class="badge">In development</span>
  <h1>Lunda keeps your padel group's scores straight, even courtside with no signal.</h1>
  <p class="lead">Plan games, record every set as it happens, and let the app sync results when the connection comes back. Edits from every player merge without losing anyone's input.</p>
  <div class="cta">
    <a class="button" href="` + androidTestingURL + `" target="_blank" rel="noopener">Android Test</a>
    <a class="button" href="` + androidStoreURL + `" target="_blank" rel="noopener">Play Store</a>
  </div>
  <div class="grid">
    <div class="card">
      <h2>Game planning</h2>
      <p class="lead">Create games, invite your group, and decide who may enter results.</p>
    </div>
    <div class="card">
      <h2>Offline scoring</h2>
      <p class="lead">Score sets on court without coverage. Everything queues locally and syncs later.</p>
    </div>
    <div class="card">
      <h2>Live results</h2>
      <p class="lead">Everyone sees updates as they land, with conflicts resolved per field.</p>
    </div>
  </div>
</section>
`)

var publicPrivacyBody = template.HTML(`
<section class="card">
  <span class="badge">Privacy Policy</span>
  <h1>Lunda Privacy Policy</h1>
  <p class="lead">Last updated: ` + privacyUpdated + `</p>
  <h2>Data we collect</h2>
  <ul>
    <li>Account information such as email, username, and password (stored as a secure hash).</li>
    <li>Gameplay data such as games, participants, and match results.</li>
    <li>Session and security data needed to keep you signed in.</li>
    <li>Push notification tokens when you enable notifications.</li>
  </ul>
  <h2>How we use data</h2>
  <ul>
    <li>To authenticate your account and keep you signed in.</li>
    <li>To sync match results between your group's devices.</li>
    <li>To protect the service and prevent abuse.</li>
  </ul>
  <h2>Sharing</h2>
  <p class="lead">We do not sell your personal data. We share data only with infrastructure providers needed to run the service.</p>
  <h2>Retention</h2>
  <p class="lead">We keep data for as long as your account is active or as required for service operation. You can request deletion.</p>
</section>
`)
