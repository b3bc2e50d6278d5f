// Package remote manages per-browser-session state for one connected
// remote photo account: the two-factor challenge workflow, gating of
// listing and download behind a ready session, and teardown on terminal
// failures or import completion.
package remote
