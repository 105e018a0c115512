package sealevel

const (
	CUSystemProgramDefaultComputeUnits = 150
	CUUpgradeableLoaderComputeUnits    = 2370
	CUDeprecatedLoaderComputeUnits     = 1140
	CUDefaultLoaderComputeUnits        = 570
	CULoaderV4ComputeUnits             = 2000
	CUInvokeUnits                      = 1000
)
