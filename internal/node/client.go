package node

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Fi44er/btc_pool/config"
	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/Fi44er/btc_pool/utils"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
)

// Client wraps the node's JSON-RPC wallet interface behind plain hex
// strings and decimal amounts, so the service layer never touches wire
// types.
type Client struct {
	rpc       *rpcclient.Client
	netParams *chaincfg.Params
	logger    *utils.Logger
}

func NewClient(cfg *config.Config, logger *utils.Logger) (*Client, error) {
	rpc, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.NodeRPCHost,
		User:         cfg.NodeRPCUser,
		Pass:         cfg.NodeRPCPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}

	logger.Infof("✅ Node RPC client ready (%s)", cfg.NodeRPCHost)
	return &Client{
		rpc:       rpc,
		netParams: &chaincfg.TestNet3Params,
		logger:    logger,
	}, nil
}

func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

func (c *Client) ListUnspent(ctx context.Context) ([]models.UnspentOutput, error) {
	results, err := c.rpc.ListUnspent()
	if err != nil {
		return nil, fmt.Errorf("listunspent: %w", err)
	}

	unspent := make([]models.UnspentOutput, 0, len(results))
	for _, res := range results {
		unspent = append(unspent, models.UnspentOutput{
			TxID:          res.TxID,
			Vout:          res.Vout,
			Address:       res.Address,
			Amount:        decimal.NewFromFloat(res.Amount).Round(8),
			Spendable:     res.Spendable,
			Confirmations: res.Confirmations,
		})
	}
	return unspent, nil
}

func (c *Client) CreateRawTransaction(ctx context.Context, inputs []models.UnspentOutput, outputs map[string]decimal.Decimal) (string, error) {
	txInputs := make([]btcjson.TransactionInput, 0, len(inputs))
	for _, in := range inputs {
		txInputs = append(txInputs, btcjson.TransactionInput{
			Txid: in.TxID,
			Vout: in.Vout,
		})
	}

	amounts := make(map[btcutil.Address]btcutil.Amount, len(outputs))
	for addr, value := range outputs {
		decoded, err := btcutil.DecodeAddress(addr, c.netParams)
		if err != nil {
			return "", fmt.Errorf("invalid output address %s: %w", addr, err)
		}
		coins, err := btcutil.NewAmount(value.InexactFloat64())
		if err != nil {
			return "", fmt.Errorf("invalid output amount %s: %w", value, err)
		}
		amounts[decoded] = coins
	}

	tx, err := c.rpc.CreateRawTransaction(txInputs, amounts, nil)
	if err != nil {
		return "", fmt.Errorf("createrawtransaction: %w", err)
	}

	return serializeTx(tx)
}

func (c *Client) DecodeRawTransaction(ctx context.Context, rawHex string) (*models.DecodedTransaction, error) {
	serialized, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("invalid raw transaction hex: %w", err)
	}

	result, err := c.rpc.DecodeRawTransaction(serialized)
	if err != nil {
		return nil, fmt.Errorf("decoderawtransaction: %w", err)
	}

	decoded := &models.DecodedTransaction{TxID: result.Txid}
	for _, vout := range result.Vout {
		out := models.DecodedOutput{
			Amount: decimal.NewFromFloat(vout.Value).Round(8),
			Index:  vout.N,
		}
		if len(vout.ScriptPubKey.Addresses) > 0 {
			out.Address = vout.ScriptPubKey.Addresses[0]
		}
		decoded.Outputs = append(decoded.Outputs, out)
	}
	return decoded, nil
}

func (c *Client) SignRawTransaction(ctx context.Context, rawHex string) (string, error) {
	tx, err := deserializeTx(rawHex)
	if err != nil {
		return "", err
	}

	signed, complete, err := c.rpc.SignRawTransactionWithWallet(tx)
	if err != nil {
		return "", fmt.Errorf("signrawtransactionwithwallet: %w", err)
	}
	if !complete {
		return "", errors.New("node could not fully sign the transaction (missing keys?)")
	}

	return serializeTx(signed)
}

func (c *Client) SendRawTransaction(ctx context.Context, signedHex string) (string, error) {
	tx, err := deserializeTx(signedHex)
	if err != nil {
		return "", err
	}

	hash, err := c.rpc.SendRawTransaction(tx, false)
	if err != nil {
		return "", fmt.Errorf("sendrawtransaction: %w", err)
	}

	return hash.String(), nil
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func deserializeTx(rawHex string) (*wire.MsgTx, error) {
	serialized, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return tx, nil
}
