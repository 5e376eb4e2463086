package tokengate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Standard определяет стандарт токена комнаты
type Standard string

const (
	StandardERC20  Standard = "ERC20"
	StandardERC721 Standard = "ERC721"
)

// Decision — результат проверки владения токеном
type Decision int

const (
	// Denied — баланс нулевой, доступа нет
	Denied Decision = iota
	// Authorized — кошелек владеет хотя бы одним токеном
	Authorized
)

var (
	ErrWalletRequired  = errors.New("wallet address required")
	ErrUnknownStandard = errors.New("unknown token standard")
)

// Минимальные ABI: для проверки достаточно balanceOf.
// ERC20 и ERC721 имеют одинаковую сигнатуру balanceOf(address)
const balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Таблица стратегий по стандарту. ERC1155 требует tokenId и сюда
// добавится отдельной записью, без изменения вызывающего кода
var standardCalls = map[Standard]abi.ABI{}

func init() {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		panic(fmt.Sprintf("tokengate: invalid ABI: %v", err))
	}
	standardCalls[StandardERC20] = parsed
	standardCalls[StandardERC721] = parsed
}

// Authorizer решает, может ли кошелек войти в token-gated комнату.
// Вызов read-only и без побочных эффектов, повторять безопасно
type Authorizer interface {
	Authorize(ctx context.Context, wallet, token string, standard Standard) (Decision, error)
}

// ContractCaller — минимальный срез ethclient.Client для eth_call
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type ChainAuthorizer struct {
	caller ContractCaller
	log    *zap.Logger
}

func NewChainAuthorizer(caller ContractCaller, log *zap.Logger) *ChainAuthorizer {
	return &ChainAuthorizer{caller: caller, log: log}
}

// Dial подключается к RPC-провайдеру (Alchemy, Infura и т.п.)
func Dial(rpcURL string, log *zap.Logger) (*ChainAuthorizer, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}
	return NewChainAuthorizer(client, log), nil
}

// Authorize выполняет balanceOf(wallet) на контракте токена.
// Authorized только при балансе строго больше нуля. Ошибка RPC — это
// не Denied: вызывающий код различает эти случаи
func (a *ChainAuthorizer) Authorize(ctx context.Context, wallet, token string, standard Standard) (Decision, error) {
	if wallet == "" {
		return Denied, ErrWalletRequired
	}

	contractABI, ok := standardCalls[standard]
	if !ok {
		return Denied, fmt.Errorf("%w: %q", ErrUnknownStandard, standard)
	}

	data, err := contractABI.Pack("balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return Denied, fmt.Errorf("pack balanceOf: %w", err)
	}

	contract := common.HexToAddress(token)
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return Denied, fmt.Errorf("eth_call balanceOf: %w", err)
	}

	out, err := contractABI.Unpack("balanceOf", raw)
	if err != nil {
		return Denied, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(out) == 0 {
		return Denied, errors.New("empty balanceOf response")
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return Denied, errors.New("malformed balanceOf response")
	}

	a.log.Debug("token balance checked",
		zap.String("wallet", wallet),
		zap.String("token", token),
		zap.String("balance", balance.String()))

	if balance.Sign() > 0 {
		return Authorized, nil
	}
	return Denied, nil
}
