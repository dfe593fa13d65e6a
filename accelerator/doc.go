// Package accelerator drives authenticated encryption on an ASCON
// accelerator board.
//
// # Overview
//
// An encryption is a fixed sequence of commands, each acknowledged by the
// board before the next one is sent:
//   - load the key, nonce, associated data and data block
//   - trigger the encryption
//   - fetch the tag, then the ciphertext
//
// A Session tracks this sequence as a state machine:
//
//	Idle → KeyLoaded → NonceLoaded → AdLoaded → DataLoaded → Triggered → TagRetrieved → Complete
//
// Steps called out of order return *StateError without touching the board.
// A step that fails after its frame was sent halts the session in the state
// it was in; there is no rollback and no retry.
//
// # Basic Usage
//
//	ch := channel.NewSerial(channel.SerialConfig{Port: "/dev/ttyUSB0"})
//	acc := accelerator.New(ch)
//	if err := acc.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	defer acc.Close()
//
//	res, err := acc.Encrypt(ctx, accelerator.Request{
//	    Key:            key,   // 16 bytes
//	    Nonce:          nonce, // 16 bytes
//	    AssociatedData: ad,    // 6 bytes
//	    Data:           block, // 181 bytes
//	})
//
// # Step by Step
//
//	s := acc.NewSession()
//	if err := s.LoadKey(ctx, key); err != nil {
//	    return err
//	}
//	// ... LoadNonce, LoadAssociatedData, LoadDataBlock, Trigger
//	tag, err := s.FetchTag(ctx)
//	ct, err := s.FetchCiphertext(ctx)
//
// # Error Handling
//
//	tag, ct, err := s.Run(ctx, key, nonce, ad, data)
//	var stageErr *accelerator.StageError
//	if errors.As(err, &stageErr) {
//	    log.Printf("failed at %s", stageErr.Stage)
//	}
//	if protocol.IsProtocolError(err) {
//	    // the board answered, but not with what was expected
//	}
//
// # Batches
//
// EncryptBlocks encrypts many blocks with shared parameters, one session
// per block, reporting progress through the callback set with
// WithProgressCallback.
package accelerator
