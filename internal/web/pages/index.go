// Package pages holds the server-rendered HTML components.
package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// IndexParams configures the upload page.
type IndexParams struct {
	OutputName  string
	MaxFileSize int64
	SyncEnabled bool
}

// Index renders the merge upload page with the record search panel.
func Index(p IndexParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, indexHead); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, indexBody,
			templ.EscapeString(formatSize(p.MaxFileSize)),
			templ.EscapeString(p.OutputName),
			syncButton(p.SyncEnabled),
		)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, indexScript)
		return err
	})
}

func syncButton(enabled bool) string {
	if !enabled {
		return ""
	}
	return `<button type="button" id="sync">Sync records</button>`
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

const indexHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Guarantor Info</title>
<style>
body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;color:#1f2937}
fieldset{border:1px solid #d1d5db;border-radius:.5rem;margin-bottom:1rem}
progress{width:100%}
.error{color:#b91c1c}
table{border-collapse:collapse;width:100%;font-size:.875rem}
td,th{border-bottom:1px solid #e5e7eb;padding:.25rem;text-align:left}
</style>
</head>
`

const indexBody = `<body>
<h1>Guarantor Info</h1>
<form id="merge" enctype="multipart/form-data">
<fieldset>
<legend>Merge reports</legend>
<p><label>Guarantor Info (Report 24) <input type="file" name="guarantor" accept=".xlsx,.xls,.csv" required></label></p>
<p><label>Active Clients (Report 12) <input type="file" name="clients" accept=".xlsx,.xls,.csv" required></label></p>
<p><small>Up to %s per file.</small></p>
<button type="submit">Merge</button>
<button type="button" id="cancel" hidden>Cancel</button>
</fieldset>
</form>
<progress id="bar" max="100" value="0" hidden></progress>
<p id="status"></p>
<p id="actions" hidden><a id="download" href="#">Download %s</a> <button type="button" id="publish">Publish to viewer</button></p>
<fieldset>
<legend>Records</legend>
<input id="q" type="search" placeholder="Client ID, name, CO name or branch">
%s
<p id="count"></p>
<table><thead><tr><th>Client ID</th><th>Name</th><th>Branch</th><th>Guarantor</th><th>Contact</th></tr></thead><tbody id="rows"></tbody></table>
</fieldset>
`

const indexScript = `<script>
(function () {
  var form = document.getElementById('merge');
  var bar = document.getElementById('bar');
  var status = document.getElementById('status');
  var actions = document.getElementById('actions');
  var cancel = document.getElementById('cancel');
  var runID = null;

  function show(msg, isError) {
    status.textContent = msg;
    status.className = isError ? 'error' : '';
  }

  function errorText(body) {
    return body && body.message ? body.message + ' (Code: ' + body.code + '). ' + (body.action || '') : 'Request failed';
  }

  form.addEventListener('submit', function (e) {
    e.preventDefault();
    actions.hidden = true;
    bar.hidden = false;
    bar.value = 0;
    show('Uploading...');
    fetch('/api/merge', { method: 'POST', body: new FormData(form) })
      .then(function (r) { return r.json().then(function (b) { return { ok: r.ok, body: b }; }); })
      .then(function (res) {
        if (!res.ok) { show(errorText(res.body), true); return; }
        runID = res.body.run_id;
        cancel.hidden = false;
        var es = new EventSource('/api/merge/' + runID + '/progress');
        es.addEventListener('progress', function (ev) {
          var p = JSON.parse(ev.data);
          bar.value = p.percent;
          show(p.error ? p.error : p.status, !!p.error);
        });
        es.addEventListener('complete', function (ev) {
          es.close();
          cancel.hidden = true;
          var p = JSON.parse(ev.data);
          if (p.phase === 'complete') {
            document.getElementById('download').href = '/api/merge/' + runID + '/download';
            actions.hidden = false;
          }
        });
      })
      .catch(function (err) { show(String(err), true); });
  });

  cancel.addEventListener('click', function () {
    if (runID) { fetch('/api/merge/' + runID + '/cancel', { method: 'POST' }); }
  });

  document.getElementById('publish').addEventListener('click', function () {
    fetch('/api/merge/' + runID + '/publish', { method: 'POST' })
      .then(function (r) { return r.json().then(function (b) { return { ok: r.ok, body: b }; }); })
      .then(function (res) {
        show(res.ok ? 'Published ' + res.body.records + ' records' : errorText(res.body), !res.ok);
        refreshCount();
      });
  });

  var rows = document.getElementById('rows');
  function cell(tr, text) { var td = document.createElement('td'); td.textContent = text; tr.appendChild(td); return td; }
  function link(td, href, text) { if (!href) return; var a = document.createElement('a'); a.href = href; a.textContent = text; td.appendChild(a); td.appendChild(document.createTextNode(' ')); }

  var timer = null;
  document.getElementById('q').addEventListener('input', function (e) {
    clearTimeout(timer);
    var q = e.target.value;
    timer = setTimeout(function () {
      fetch('/api/records?q=' + encodeURIComponent(q)).then(function (r) { return r.json(); }).then(function (body) {
        rows.textContent = '';
        (body.records || []).forEach(function (rec) {
          var tr = document.createElement('tr');
          cell(tr, rec['Client ID']);
          cell(tr, rec['Name']);
          cell(tr, rec['Branch']);
          cell(tr, rec['Guarantor Name'] + ' ' + rec['Guarantor Cell']);
          var td = cell(tr, '');
          link(td, rec.call_link, 'Call');
          link(td, rec.whatsapp_link, 'WhatsApp');
          rows.appendChild(tr);
        });
      });
    }, 250);
  });

  function refreshCount() {
    fetch('/api/records/count').then(function (r) { return r.json(); }).then(function (b) {
      document.getElementById('count').textContent = b.count + ' records stored';
    });
  }
  refreshCount();

  var sync = document.getElementById('sync');
  if (sync) {
    sync.addEventListener('click', function () {
      show('Connecting to server...');
      fetch('/api/records/sync', { method: 'POST' })
        .then(function (r) { return r.json().then(function (b) { return { ok: r.ok, body: b }; }); })
        .then(function (res) {
          show(res.ok ? 'Sync completed successfully!' : errorText(res.body), !res.ok);
          refreshCount();
        });
    });
  }
})();
</script>
</body>
</html>
`
