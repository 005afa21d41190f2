// Package media correlates asynchronous artwork downloads with the callers
// that asked for them.
//
// A Manager receives a batch of candidate images described by URL and
// declared sizes, drops candidates that are too small to display, and asks
// its Downloader to fetch the first one left. The download completes later
// through OnFinishDownloadImage, which is matched against the single pending
// request by id. Exactly one callback fires per DownloadImage call that
// reaches the downloader, and exactly one for calls rejected up front.
//
// Components:
//   - Image, Size: candidate descriptors
//   - Manager: single-slot request/response correlation
//   - Downloader: collaborator that performs the fetch
//   - Observer: optional event hooks for metrics
//
// Threading:
//
// A Manager is owned by one logical sequence (see package sequence). Both
// DownloadImage and OnFinishDownloadImage must be called from it; the
// Downloader is responsible for delivering completions there.
//
// Example Usage:
//
//	m := media.NewManager(114, 256)
//	m.SetDownloader(fetcher.On(runner))
//	m.DownloadImage(images, media.CallbackFunc(func(img image.Image) {
//		if img == nil {
//			// no usable artwork
//		}
//	}))
package media
