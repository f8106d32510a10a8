package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"cm": func(v float64) string {
		if v == logic.NoEcho {
			return "no echo"
		}
		return fmt.Sprintf("%.1f cm", v)
	},
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Parking Sensor {{.Config.SpotID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.occupied { color: red; font-weight: bold; }
.free { color: green; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Parking Sensor {{.Config.SpotID}}</h1>

<h2>Spot</h2>
<table>
<tr><th>State</th><td id="state" class="{{.State}}">{{.State}}</td></tr>
<tr><th>Distance</th><td>{{if .HasReading}}{{cm .AverageCM}}{{else}}-{{end}}</td></tr>
<tr><th>Confirmations</th><td>occupied {{.Counters.Occupied}} / free {{.Counters.Free}}</td></tr>
<tr><th>Windows since report</th><td>{{.LoopsSincePost}}</td></tr>
<tr><th>Windows</th><td>{{.Windows}}</td></tr>
</table>

<h2>Reports</h2>
<table>
<tr><th>Sent</th><td>{{.Reports.Sent}}</td></tr>
<tr><th>Failed</th><td>{{.Reports.Failed}}</td></tr>
<tr><th>Skipped</th><td>{{.Reports.Skipped}}</td></tr>
<tr><th>Last sent</th><td>{{ts .LastReport}}</td></tr>
<tr><th>Backend</th><td>{{.Config.BackendURL}}</td></tr>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor</th><td>{{.Config.Sensor}}</td></tr>
<tr><th>Threshold</th><td>{{.Config.ThresholdCM}} cm</td></tr>
<tr><th>Confirmations required</th><td>{{.Config.Confirmations}}</td></tr>
<tr><th>Heartbeat</th><td>{{if le .Config.HeartbeatWindows 0}}disabled{{else}}every {{.Config.HeartbeatWindows}} windows{{end}}</td></tr>
<tr><th>Window</th><td>{{.Config.SamplesPerWindow}} samples, {{.Config.SampleDelayMs}}ms apart, every {{.Config.WindowPeriodMs}}ms</td></tr>
<tr><th>No-echo readings</th><td>{{if .Config.DropNoEcho}}dropped{{else}}averaged{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
