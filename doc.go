// Package crpt is a client for the CRPT registry document API with a
// built-in sliding-window rate limit.
//
// A Client allows at most requestLimit calls in any rolling window. The
// limit is shared by every goroutine using the Client: callers over the
// limit block in arrival order until a slot frees up or their context ends.
//
// Basic Usage:
//
//	client, err := crpt.New(time.Second, 10,
//	    crpt.WithToken(os.Getenv("CRPT_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc := &crpt.Document{
//	    DocType:        crpt.DocTypeIntroduceGoods,
//	    ParticipantINN: "7701234567",
//	    Products:       []crpt.Product{{UITCode: "010460123456789021"}},
//	}
//
//	result, err := client.CreateDocument(ctx, doc, signature)
//	if err != nil {
//	    var se *crpt.StatusError
//	    if errors.As(err, &se) {
//	        log.Printf("registry said %d: %s", se.StatusCode, se.Body)
//	    }
//	    return err
//	}
//	fmt.Println(result.Extracted["docId"])
//
// Errors:
//
// CreateDocument returns errors matching ErrInvalidDocument (schema check
// failed, nothing sent), ErrCanceled (the context ended while waiting for
// a slot, nothing sent), ErrCircuitOpen (the breaker is open, nothing
// sent), a *StatusError for non-2xx responses, or a transport error.
//
// Thread Safety:
//
// Client is safe for concurrent use.
package crpt
