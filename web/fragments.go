package web

import (
	"html/template"
	"net/http"

	"noisedeck/ble"
	"noisedeck/log"
	"noisedeck/noise"
)

// Fragments are htmx swap targets; each carries the id of the element it
// replaces (hx-swap="outerHTML").

var audioListTmpl = template.Must(template.New("audio-list").Parse(`<div id="audio-list"><ul>
{{- range .}}
<li>{{if .Selected}}<strong>{{.Name}}</strong>{{else}}{{.Name}}{{end}} <button hx-post="/audio/select?index={{.Index}}" hx-target="#audio-list" hx-swap="outerHTML">Select</button></li>
{{- else}}
<li><em>No playback devices found</em></li>
{{- end}}
</ul></div>`))

var bleListTmpl = template.Must(template.New("ble-list").Parse(`<div id="ble-list"><table><thead><tr><th>Name</th><th>Address</th><th>Status</th><th>Action</th></tr></thead><tbody>
{{- if .Err}}
<tr><td colspan="4">Error scanning</td></tr>
{{- else}}
{{- range .Peripherals}}
<tr><td>{{with .Name}}{{.}}{{else}}&lt;unknown&gt;{{end}}</td><td>{{.Address}}</td><td>{{if .Connected}}connected{{else}}disconnected{{end}}</td><td><button hx-post="/ble/toggle?address={{.Address}}" hx-target="#ble-list" hx-swap="outerHTML">Toggle</button></td></tr>
{{- else}}
<tr><td colspan="4">No devices found</td></tr>
{{- end}}
{{- end}}
</tbody></table></div>`))

func writeFragment(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func renderAudioList(w http.ResponseWriter, devices []noise.Device) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := audioListTmpl.Execute(w, devices); err != nil {
		log.Errorf("rendering audio list: %v", err)
	}
}

func renderBLEList(w http.ResponseWriter, peripherals []ble.Peripheral, scanErr error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Peripherals []ble.Peripheral
		Err         error
	}{peripherals, scanErr}
	if err := bleListTmpl.Execute(w, data); err != nil {
		log.Errorf("rendering ble list: %v", err)
	}
}
