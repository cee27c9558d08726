/*
Package browser owns every window of one browser and the loop they run on.

Renderer processes post events from their own goroutines; the Manager
gives each window a sink that queues them onto the Loop. API callers use
Do or WithWindow. Delegate callbacks already run on the loop and may call
any window directly.

	b := browser.NewManager(browser.Config{
		Processes: factory,
		Views:     factory,
		Delegate:  delegate,
	})
	defer b.Shutdown(ctx)

	err := b.Do(ctx, func() {
		w := b.Create(render.Rect{Width: 800, Height: 600})
		w.NavigateTo("https://example.com/")
	})
*/
package browser
