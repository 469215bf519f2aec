package ospf

// Message is the payload of an OSPF event exchanged between two local
// OSPF processes over one adjacency, per §4.5. It is carried inside the
// kernel's Event alongside its source and destination routers.
type Message struct {
	DatabaseDescription *DatabaseDescriptionMsg
	LinkStateRequest    *LinkStateRequestMsg
	LinkStateUpdate     *LinkStateUpdateMsg
}

// DatabaseDescriptionMsg summarizes the sender's LSA headers during
// Exchange.
type DatabaseDescriptionMsg struct {
	Headers map[LsaKey]LsaHeader
}

// LinkStateRequestMsg asks the peer for the full LSAs behind these keys.
type LinkStateRequestMsg struct {
	Keys []LsaKey
}

// LinkStateUpdateMsg floods LSAs to a neighbor. Ack==true means this
// carries an acknowledgement rather than new content, per §4.5/§9:
// acknowledgements reuse the same message shape.
type LinkStateUpdateMsg struct {
	Lsas map[LsaKey]Lsa
	Ack  bool
}

func ddMessage(h map[LsaKey]LsaHeader) Message {
	return Message{DatabaseDescription: &DatabaseDescriptionMsg{Headers: h}}
}

func lsrMessage(keys []LsaKey) Message {
	return Message{LinkStateRequest: &LinkStateRequestMsg{Keys: keys}}
}

func luMessage(lsas map[LsaKey]Lsa, ack bool) Message {
	return Message{LinkStateUpdate: &LinkStateUpdateMsg{Lsas: lsas, Ack: ack}}
}
