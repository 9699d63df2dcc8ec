package server

const listingTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>/{{.Dir}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
        .container { max-width: 960px; margin: 0 auto; background: white; border-radius: 10px; padding: 24px; box-shadow: 0 2px 10px rgba(0,0,0,0.08); }
        h1 { font-size: 20px; margin-top: 0; word-break: break-all; }
        .actions { margin-bottom: 16px; }
        .btn { display: inline-block; padding: 8px 16px; background: #667eea; color: white; border-radius: 6px; text-decoration: none; }
        table { width: 100%; border-collapse: collapse; }
        td { padding: 8px; border-bottom: 1px solid #eee; }
        td.size { text-align: right; color: #888; white-space: nowrap; }
        a { color: #333; }
        .dir a { font-weight: 600; }
        .image a { color: #667eea; }
    </style>
</head>
<body>
<div class="container">
    <h1>/{{.Dir}}</h1>
    <div class="actions">
        <a class="btn" id="sync" href="/sync/{{.Dir}}">Build gallery</a>
        <span id="sync-status"></span>
    </div>
    <table>
        {{if .HasUp}}<tr class="dir"><td><a href="/serve/{{.Parent}}">..</a></td><td class="size"></td></tr>{{end}}
        {{range .Entries}}
        <tr class="{{if .IsDir}}dir{{else if .IsImage}}image{{end}}">
            <td><a href="/serve/{{.Path}}">{{.Name}}{{if .IsDir}}/{{end}}</a></td>
            <td class="size">{{if not .IsDir}}{{formatSize .Size}}{{end}}</td>
        </tr>
        {{end}}
    </table>
</div>
<script>
    document.getElementById('sync').addEventListener('click', function (e) {
        e.preventDefault();
        var status = document.getElementById('sync-status');
        fetch(this.href).then(function (r) {
            if (!r.ok) { return r.text().then(function (t) { throw new Error(t); }); }
            return r.json();
        }).then(function (cmd) {
            status.textContent = 'Queued';
            var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            var ws = new WebSocket(proto + location.host + '/ws?dir=' + encodeURIComponent(cmd.directory));
            ws.onmessage = function (msg) {
                msg.data.split('\n').forEach(function (line) {
                    var ev = JSON.parse(line);
                    if (ev.runId !== cmd.id) { return; }
                    if (ev.type === 'sync.started') { status.textContent = 'Building...'; }
                    if (ev.type === 'sync.failed') { status.textContent = 'Failed: ' + ev.error; ws.close(); }
                    if (ev.type === 'sync.done') { ws.close(); location.reload(); }
                });
            };
        }).catch(function (err) { status.textContent = err.message; });
    });
</script>
</body>
</html>`

const defaultGalleryShell = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Gallery</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background: #111; color: #eee; }
        #grid { display: flex; flex-wrap: wrap; gap: 8px; align-items: flex-end; }
        .thumb { display: block; background-repeat: no-repeat; border-radius: 4px; }
        .thumb:hover { outline: 2px solid #667eea; }
    </style>
</head>
<body>
<div id="grid"></div>
<script>
    var base = location.pathname.replace(/\/+$/, '');
    fetch(base + '/bundles.json').then(function (r) { return r.json(); }).then(function (entries) {
        var grid = document.getElementById('grid');
        document.title = decodeURIComponent(base.replace(/^\/serve\/?/, '/'));
        entries.forEach(function (e) {
            var a = document.createElement('a');
            a.className = 'thumb';
            a.href = base + '/' + encodeURIComponent(e.original_name);
            a.title = e.original_name;
            a.style.width = e.width + 'px';
            a.style.height = e.height + 'px';
            a.style.backgroundImage = 'url(' + base + '/' + e.thumbnail_name + ')';
            a.style.backgroundPosition = '-' + e.position_x + 'px 0';
            grid.appendChild(a);
        });
    });
</script>
</body>
</html>`
