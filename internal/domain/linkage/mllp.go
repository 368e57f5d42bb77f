package linkage

import (
	"context"
	"errors"
	"time"

	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/hl7v2"
)

// mllpTimeout bounds one message's ingest, lock wait included.
const mllpTimeout = 30 * time.Second

// MLLPHandler ingests each framed message under sess and answers with an
// ACK: AA when stored or already attached, AR when the session may not
// upload, AE otherwise.
func (s *Service) MLLPHandler(sess auth.Session, opts IngestOptions) hl7v2.MessageHandler {
	return func(raw []byte) []byte {
		hdr, err := hl7v2.ParseHeader(raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("mllp message without a usable MSH")
			return hl7v2.GenerateACK(&hl7v2.Header{}, hl7v2.AckReject, err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), mllpTimeout)
		defer cancel()

		out, err := s.IngestHL7(ctx, sess, raw, opts)
		code, text := ackFor(out, err)
		s.logger.Info().Str("control_id", hdr.ControlID).Str("ack", code).Msg("mllp message processed")
		return hl7v2.GenerateACK(hdr, code, text)
	}
}

func ackFor(out *Outcome, err error) (code, text string) {
	switch {
	case err == nil && out.Duplicate:
		return hl7v2.AckAccept, "report already attached"
	case err == nil:
		return hl7v2.AckAccept, ""
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated):
		return hl7v2.AckReject, err.Error()
	}
	return hl7v2.AckError, err.Error()
}
