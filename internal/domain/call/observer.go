package call

// Observer receives call status snapshots from a call status source.
type Observer interface {
	StateDidChange(status Status)
	MuteDidChange(status Status)
	HoldDidChange(status Status)
	HasLocalVideoDidChange(status Status)
}
