// Package signaling relays WebRTC session negotiation between exactly two
// authenticated peers: one receiver (the camera-feed consumer) and one
// user/admin (the camera side). It owns the session registry, the
// peer-to-peer message router, and the roster broadcast that tells each side
// who else is online.
//
// The relay never inspects SDP or ICE payloads; it forwards them opaquely.
// Media flows peer-to-peer once negotiation succeeds.
package signaling
