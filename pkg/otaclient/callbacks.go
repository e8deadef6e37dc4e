package otaclient

// TransferCallbacks receive the reassembled payload on the receiving
// side, header already stripped.
type TransferCallbacks struct {
	OnChunk    func(offset uint64, data []byte) error
	OnComplete func()
}
