// Package platform is the lifecycle controller for the Eve door simulator.
//
// A Platform is created by the host once its version has been checked,
// then driven through Start, Configure and Shutdown:
//
//	p, err := platform.New(host, cfg.Platform, platform.Options{Logger: log})
//	if err != nil {
//	    return err // host too old
//	}
//	if err := p.Start(ctx, "startup"); err != nil {
//	    return err
//	}
//	if err := p.Configure(ctx); err != nil {
//	    return err
//	}
//	defer p.Shutdown(ctx, "exit")
//
// Start builds the door endpoint and its history; Configure arms the
// simulation timer; Shutdown stops the timer, closes the history store and
// optionally unregisters the device. Transitions are guarded by a state
// machine so a platform is started at most once.
package platform
