// Package sse implements the Server-Sent Events wire format.
//
// Decoder reads frames incrementally from a streaming body: bytes are buffered
// and split on newlines, a partial trailing line is held until more data
// arrives, and "event:", "data:", "id:" and "retry:" fields are accumulated
// until a blank line terminates the frame. Comment lines (starting with ":")
// are skipped.
//
//	dec := sse.NewDecoder(resp.Body)
//	for {
//		ev, err := dec.Next()
//		if err != nil {
//			return err // io.EOF when the stream ends
//		}
//		fmt.Println(ev.Type(), ev.Data)
//	}
//
// WriteEvent and WriteComment produce the same format on the server side:
//
//	_ = sse.WriteEvent(w, sse.Event{Event: "message", Data: `{"channel":"c"}`})
//	flusher.Flush()
package sse
