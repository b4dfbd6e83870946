package codec

import "github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"

// Hydrator receives a decoded message as an ordered call sequence so that
// consumers can build backend-native objects directly. For Add and Update the
// document is defined first, its fields follow, and AddAdd/AddUpdate consumes
// it. Any error stops the replay.
type Hydrator interface {
	BeginMessage(v protocol.Version) error
	AddOptimizeAll() error
	AddPurgeAll(entityType string) error
	AddDelete(entityType string, id []byte) error
	DefineDocument(boost float32) error
	AddField(f protocol.Field) error
	AddAdd(entityType string, id []byte, fieldToAnalyzer map[string]string) error
	AddUpdate(entityType string, id []byte, fieldToAnalyzer map[string]string) error
	EndMessage() error
}

// Replay pushes an already decoded message through h.
func Replay(msg *protocol.Message, h Hydrator) error {
	if err := h.BeginMessage(msg.Version); err != nil {
		return err
	}
	for _, op := range msg.Operations {
		var err error
		switch o := op.(type) {
		case protocol.OptimizeAll:
			err = h.AddOptimizeAll()
		case protocol.PurgeAll:
			err = h.AddPurgeAll(o.EntityType)
		case protocol.Delete:
			err = h.AddDelete(o.EntityType, o.ID)
		case protocol.Add:
			if err = replayDocument(o.Document, h); err == nil {
				err = h.AddAdd(o.EntityType, o.ID, o.FieldToAnalyzer)
			}
		case protocol.Update:
			if err = replayDocument(o.Document, h); err == nil {
				err = h.AddUpdate(o.EntityType, o.ID, o.FieldToAnalyzer)
			}
		}
		if err != nil {
			return err
		}
	}
	return h.EndMessage()
}

func replayDocument(doc protocol.Document, h Hydrator) error {
	if err := h.DefineDocument(doc.Boost); err != nil {
		return err
	}
	for _, f := range doc.Fields {
		if err := h.AddField(f); err != nil {
			return err
		}
	}
	return nil
}
