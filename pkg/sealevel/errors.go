package sealevel

import (
	"errors"
	"strconv"
)

// instruction errors
var (
	InstrErrGenericError                           = errors.New("InstrErrGenericError")
	InstrErrInvalidArgument                        = errors.New("InstrErrInvalidArgument")
	InstrErrInvalidInstructionData                 = errors.New("InstrErrInvalidInstructionData")
	InstrErrInvalidAccountData                     = errors.New("InstrErrInvalidAccountData")
	InstrErrAccountDataTooSmall                    = errors.New("InstrErrAccountDataTooSmall")
	InstrErrInsufficientFunds                      = errors.New("InstrErrInsufficientFunds")
	InstrErrIncorrectProgramId                     = errors.New("InstrErrIncorrectProgramId")
	InstrErrMissingRequiredSignature               = errors.New("InstrErrMissingRequiredSignature")
	InstrErrAccountAlreadyInitialized              = errors.New("InstrErrAccountAlreadyInitialized")
	InstrErrUninitializedAccount                   = errors.New("InstrErrUninitializedAccount")
	InstrErrUnbalancedInstruction                  = errors.New("InstrErrUnbalancedInstruction")
	InstrErrModifiedProgramId                      = errors.New("InstrErrModifiedProgramId")
	InstrErrExternalAccountLamportSpend            = errors.New("InstrErrExternalAccountLamportSpend")
	InstrErrExternalAccountDataModified            = errors.New("InstrErrExternalAccountDataModified")
	InstrErrReadonlyLamportChange                  = errors.New("InstrErrReadonlyLamportChange")
	InstrErrReadonlyDataModified                   = errors.New("InstrErrReadonlyDataModified")
	InstrErrDuplicateAccountIndex                  = errors.New("InstrErrDuplicateAccountIndex")
	InstrErrExecutableModified                     = errors.New("InstrErrExecutableModified")
	InstrErrRentEpochModified                      = errors.New("InstrErrRentEpochModified")
	InstrErrNotEnoughAccountKeys                   = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrAccountDataSizeChanged                 = errors.New("InstrErrAccountDataSizeChanged")
	InstrErrAccountNotExecutable                   = errors.New("InstrErrAccountNotExecutable")
	InstrErrAccountBorrowFailed                    = errors.New("InstrErrAccountBorrowFailed")
	InstrErrAccountBorrowOutstanding               = errors.New("InstrErrAccountBorrowOutstanding")
	InstrErrDuplicateAccountOutOfSync              = errors.New("InstrErrDuplicateAccountOutOfSync")
	InstrErrInvalidError                           = errors.New("InstrErrInvalidError")
	InstrErrExecutableDataModified                 = errors.New("InstrErrExecutableDataModified")
	InstrErrExecutableLamportChange                = errors.New("InstrErrExecutableLamportChange")
	InstrErrExecutableAccountNotRentExempt         = errors.New("InstrErrExecutableAccountNotRentExempt")
	InstrErrUnsupportedProgramId                   = errors.New("InstrErrUnsupportedProgramId")
	InstrErrCallDepth                              = errors.New("InstrErrCallDepth")
	InstrErrMissingAccount                         = errors.New("InstrErrMissingAccount")
	InstrErrReentrancyNotAllowed                   = errors.New("InstrErrReentrancyNotAllowed")
	InstrErrMaxSeedLengthExceeded                  = errors.New("InstrErrMaxSeedLengthExceeded")
	InstrErrInvalidSeeds                           = errors.New("InstrErrInvalidSeeds")
	InstrErrInvalidRealloc                         = errors.New("InstrErrInvalidRealloc")
	InstrErrComputationalBudgetExceeded            = errors.New("InstrErrComputationalBudgetExceeded")
	InstrErrPrivilegeEscalation                    = errors.New("InstrErrPrivilegeEscalation")
	InstrErrProgramEnvironmentSetupFailure         = errors.New("InstrErrProgramEnvironmentSetupFailure")
	InstrErrProgramFailedToComplete                = errors.New("InstrErrProgramFailedToComplete")
	InstrErrProgramFailedToCompile                 = errors.New("InstrErrProgramFailedToCompile")
	InstrErrImmutable                              = errors.New("InstrErrImmutable")
	InstrErrIncorrectAuthority                     = errors.New("InstrErrIncorrectAuthority")
	InstrErrAccountNotRentExempt                   = errors.New("InstrErrAccountNotRentExempt")
	InstrErrInvalidAccountOwner                    = errors.New("InstrErrInvalidAccountOwner")
	InstrErrArithmeticOverflow                     = errors.New("InstrErrArithmeticOverflow")
	InstrErrUnsupportedSysvar                      = errors.New("InstrErrUnsupportedSysvar")
	InstrErrIllegalOwner                           = errors.New("InstrErrIllegalOwner")
	InstrErrMaxAccountsDataAllocationsExceeded     = errors.New("InstrErrMaxAccountsDataAllocationsExceeded")
	InstrErrMaxAccountsResizeExceeded              = errors.New("InstrErrMaxAccountsResizeExceeded")
	InstrErrMaxInstructionTraceLengthExceeded      = errors.New("InstrErrMaxInstructionTraceLengthExceeded")
	InstrErrBuiltinProgramsMustConsumeComputeUnits = errors.New("InstrErrBuiltinProgramsMustConsumeComputeUnits")
)

// precompile errors, reported as custom codes like the cluster does
var (
	PrecompileErrInvalidPublicKey           = CustomError(0)
	PrecompileErrInvalidRecoveryId          = CustomError(1)
	PrecompileErrInvalidSignature           = CustomError(2)
	PrecompileErrInvalidDataOffsets         = CustomError(3)
	PrecompileErrInvalidInstructionDataSize = CustomError(4)
)

// instructionErrors is ordered by the cluster's numeric InstructionError
// codes: the position of an error is its code.
var instructionErrors = []error{
	InstrErrGenericError,
	InstrErrInvalidArgument,
	InstrErrInvalidInstructionData,
	InstrErrInvalidAccountData,
	InstrErrAccountDataTooSmall,
	InstrErrInsufficientFunds,
	InstrErrIncorrectProgramId,
	InstrErrMissingRequiredSignature,
	InstrErrAccountAlreadyInitialized,
	InstrErrUninitializedAccount,
	InstrErrUnbalancedInstruction,
	InstrErrModifiedProgramId,
	InstrErrExternalAccountLamportSpend,
	InstrErrExternalAccountDataModified,
	InstrErrReadonlyLamportChange,
	InstrErrReadonlyDataModified,
	InstrErrDuplicateAccountIndex,
	InstrErrExecutableModified,
	InstrErrRentEpochModified,
	InstrErrNotEnoughAccountKeys,
	InstrErrAccountDataSizeChanged,
	InstrErrAccountNotExecutable,
	InstrErrAccountBorrowFailed,
	InstrErrAccountBorrowOutstanding,
	InstrErrDuplicateAccountOutOfSync,
	nil, // Custom
	InstrErrInvalidError,
	InstrErrExecutableDataModified,
	InstrErrExecutableLamportChange,
	InstrErrExecutableAccountNotRentExempt,
	InstrErrUnsupportedProgramId,
	InstrErrCallDepth,
	InstrErrMissingAccount,
	InstrErrReentrancyNotAllowed,
	InstrErrMaxSeedLengthExceeded,
	InstrErrInvalidSeeds,
	InstrErrInvalidRealloc,
	InstrErrComputationalBudgetExceeded,
	InstrErrPrivilegeEscalation,
	InstrErrProgramEnvironmentSetupFailure,
	InstrErrProgramFailedToComplete,
	InstrErrProgramFailedToCompile,
	InstrErrImmutable,
	InstrErrIncorrectAuthority,
	nil, // BorshIoError
	InstrErrAccountNotRentExempt,
	InstrErrInvalidAccountOwner,
	InstrErrArithmeticOverflow,
	InstrErrUnsupportedSysvar,
	InstrErrIllegalOwner,
	InstrErrMaxAccountsDataAllocationsExceeded,
	InstrErrMaxAccountsResizeExceeded,
	InstrErrMaxInstructionTraceLengthExceeded,
	InstrErrBuiltinProgramsMustConsumeComputeUnits,
}

// InstrErrCodeCustom is the code of a program-defined error; the program's own
// code travels alongside it.
const InstrErrCodeCustom = 25

// CustomError is a program-specific error code. Native programs return these
// for their own error enums.
type CustomError uint32

func (e CustomError) Error() string {
	return "InstrErrCustom(" + strconv.FormatUint(uint64(e), 10) + ")"
}

// custom error codes of the system program
var (
	SystemProgErrAccountAlreadyInUse        = CustomError(0)
	SystemProgErrResultWithNegativeLamports = CustomError(1)
	SystemProgErrInvalidProgramId           = CustomError(2)
	SystemProgErrInvalidAccountDataLength   = CustomError(3)
	SystemProgErrMaxSeedLengthExceeded      = CustomError(4)
	SystemProgErrAddressWithSeedMismatch    = CustomError(5)
)

// TranslateErrToInstrErrCode maps an execution error onto its numeric
// InstructionError code and, for custom errors, the program's code.
// Unknown errors map to InstrErrGenericError.
func TranslateErrToInstrErrCode(err error) (code int, custom uint32) {
	if err == nil {
		return -1, 0
	}
	var customErr CustomError
	if errors.As(err, &customErr) {
		return InstrErrCodeCustom, uint32(customErr)
	}
	for code, instrErr := range instructionErrors {
		if instrErr != nil && errors.Is(err, instrErr) {
			return code, 0
		}
	}
	return 0, 0
}

// InstrErrFromCode is the inverse of TranslateErrToInstrErrCode.
func InstrErrFromCode(code int, custom uint32) error {
	if code == InstrErrCodeCustom {
		return CustomError(custom)
	}
	if code < 0 || code >= len(instructionErrors) || instructionErrors[code] == nil {
		return InstrErrInvalidError
	}
	return instructionErrors[code]
}
