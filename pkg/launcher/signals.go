package launcher

import (
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"
)

// forwardSignals keeps the launcher alive while the tool runs and relays
// termination requests to it. SIGINT is swallowed but not relayed: a
// terminal already delivers it to the whole foreground process group.
func forwardSignals(p *os.Process) (stop func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-ch:
				if sig == os.Interrupt {
					continue
				}
				klog.V(1).InfoS("Forwarding signal to deployment tool", "signal", sig, "pid", p.Pid)
				if err := p.Signal(sig); err != nil {
					klog.V(1).InfoS("Failed to forward signal", "signal", sig, "err", err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
