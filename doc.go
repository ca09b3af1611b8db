// Package tunnelctl supervises a single long-lived tunnel process (a
// wireproxy-style binary that turns a WireGuard endpoint into a local HTTP
// proxy) and keeps a small status model in step with it.
//
// The Supervisor owns the process. It spawns the binary, confirms health
// after a stability window and reports every exit as a typed Outcome:
//
//	sup := tunnelctl.NewSupervisor(ctx,
//	    tunnelctl.WithBinary("/usr/local/bin/wireproxy"),
//	    tunnelctl.WithStabilityWindow(time.Second),
//	)
//	defer sup.Close(ctx)
//
//	launch, err := sup.Start(ctx, tunnelctl.StartRequest{
//	    ConfigPath: "/home/me/.config/tunnelctl/wireproxy.conf",
//	    Profile:    "home",
//	})
//
//	for o := range sup.Events() {
//	    fmt.Println(o.Kind, o.Generation == launch.Generation)
//	}
//
// At most one process is alive at a time: Start stops and awaits the
// previous process before spawning. Stop waits for the OS to confirm the
// exit and never times out on its own.
//
// # Controller
//
// The Controller is the workflow layer a host application embeds. It
// persists the selected endpoint through a ConfigStore, drives the
// Supervisor and renders a StatusModel on a StatusIndicator:
//
//	ctrl := tunnelctl.NewController(store, sup, tunnelctl.NewStatusModel(indicator, port), picker, notifier)
//	go ctrl.Run(ctx)
//	err := ctrl.Activate(ctx, indicator)
//
// A newly selected endpoint that fails before it is confirmed stable is
// deleted again and the status returns to NoConfig. A persisted endpoint
// that fails keeps its config and the status shows Error. No process is
// ever respawned automatically.
//
// # Host collaborators
//
// The package does not depend on a UI toolkit. Hosts supply a
// StatusIndicator, a FilePicker, a Notifier and a ProxySetting; the
// cmd/tunnelctl command implements all four for a terminal.
package tunnelctl
