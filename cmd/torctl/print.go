package main

import (
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	tor "github.com/lightninglabs/torctrl"
)

// printKeyValues renders a map as a two-column table, sorted by key, for
// GETINFO/GETCONF output.
func printKeyValues(title string, values map[string]string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Key", "Value"})

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t.AppendRow(table.Row{k, values[k]})
	}
	t.Render()
}

// printEvent renders a single event to stdout as it arrives from a watch
// subscription.
func printEvent(evt tor.Event) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{evt.ArrivedAt().Format("15:04:05.000"), evt.Type(), evt.Raw().Raw()})
	t.Render()
}
