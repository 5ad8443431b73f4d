package protocol

import "testing"

func TestMailboxConcurrentHandoff(t *testing.T) {
	const frames = 500
	var mb Mailbox

	done := make(chan struct{})
	go func() {
		defer close(done)
		var f Frame
		for seq := uint32(1); seq <= frames; {
			for i := 0; i < FrameWords; i++ {
				f.SetWord(i, seq)
			}
			if mb.Post(&f) {
				seq++
			}
		}
	}()

	var out Frame
	for want := uint32(1); want <= frames; {
		if !mb.Take(&out) {
			continue
		}
		for i := 0; i < FrameWords; i++ {
			if out.Word(i) != want {
				t.Fatalf("frame %d: word %d torn, got %d", want, i, out.Word(i))
			}
		}
		want++
	}
	<-done
}
