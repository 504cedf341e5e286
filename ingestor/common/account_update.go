package common

import (
	"time"

	"github.com/gagliardetto/solana-go"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"

	dcommon "github.com/rexbrahh/lp-pricer/decoder/common"
)

// ConvertAccountUpdate builds a snapshot from a Yellowstone account update. Returns
// nil when the update carries no account or malformed keys.
func ConvertAccountUpdate(update *pb.SubscribeUpdateAccount, receivedAt time.Time) *dcommon.AccountSnapshot {
	if update == nil {
		return nil
	}
	info := update.GetAccount()
	if info == nil {
		return nil
	}
	if len(info.GetPubkey()) != solana.PublicKeyLength || len(info.GetOwner()) != solana.PublicKeyLength {
		return nil
	}

	data := make([]byte, len(info.GetData()))
	copy(data, info.GetData())
	return &dcommon.AccountSnapshot{
		Address:   solana.PublicKeyFromBytes(info.GetPubkey()),
		Owner:     solana.PublicKeyFromBytes(info.GetOwner()),
		Data:      data,
		Lamports:  info.GetLamports(),
		Slot:      update.GetSlot(),
		FetchedAt: receivedAt.UTC(),
	}
}
