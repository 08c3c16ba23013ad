// internal/contracts/abi.go
package contracts

// Contract ABIs, trimmed to the methods the mirror uses.

const TicketNFTABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"tokenOfOwnerByIndex","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getUserTickets","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"name":"getTicket","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"concertId","type":"uint256"},{"name":"concertName","type":"string"},{"name":"artist","type":"string"},{"name":"venue","type":"string"},{"name":"eventDate","type":"uint256"},{"name":"seatSection","type":"string"},{"name":"seatNumber","type":"uint32"},{"name":"originalPrice","type":"uint256"},{"name":"owner","type":"address"},{"name":"isUsed","type":"bool"},{"name":"transferCount","type":"uint256"},{"name":"purchaseTime","type":"uint256"}]},
	{"name":"getConcert","type":"function","stateMutability":"view","inputs":[{"name":"concertId","type":"uint256"}],"outputs":[{"name":"name","type":"string"},{"name":"artist","type":"string"},{"name":"venue","type":"string"},{"name":"date","type":"uint256"},{"name":"totalTickets","type":"uint256"},{"name":"soldTickets","type":"uint256"},{"name":"originalPrice","type":"uint256"},{"name":"maxResalePrice","type":"uint256"},{"name":"isActive","type":"bool"},{"name":"minVerificationLevel","type":"uint8"}]},
	{"name":"getActiveResaleOrders","type":"function","stateMutability":"view","inputs":[{"name":"concertId","type":"uint256"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"name":"getResaleOrder","type":"function","stateMutability":"view","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[{"name":"ticketId","type":"uint256"},{"name":"seller","type":"address"},{"name":"price","type":"uint256"},{"name":"listTime","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"active","type":"bool"}]},
	{"name":"purchaseTicket","type":"function","stateMutability":"nonpayable","inputs":[{"name":"concertId","type":"uint256"},{"name":"seatSection","type":"string"},{"name":"seatNumber","type":"uint32"}],"outputs":[]},
	{"name":"listForResale","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"},{"name":"deadline","type":"uint256"}],"outputs":[]},
	{"name":"cancelResale","type":"function","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"name":"buyResale","type":"function","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"name":"useTicket","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"name":"transferTicket","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const FLTTokenABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"stakedBalance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"pendingRewards","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"stake","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"unstake","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"claimRewards","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const VerificationRegistryABI = `[
	{"name":"verificationLevel","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint8"}]}
]`
